package protocol

import "fmt"

// ZoneType is the programmed function of a zone, from GETZONEDETAILS.
type ZoneType byte

// ZoneTypeUnused marks a zone with no programmed function. Site data sync
// skips these.
const ZoneTypeUnused ZoneType = 0

var zoneTypeNames = map[ZoneType]string{
	1:  "Entry/Exit 1",
	2:  "Entry/Exit 2",
	3:  "Interior",
	4:  "Perimeter",
	5:  "24hr Audible",
	6:  "24hr Silent",
	7:  "Audible PA",
	8:  "Silent PA",
	9:  "Fire Alarm",
	10: "Medical",
	11: "24Hr Gas Alarm",
	12: "Auxiliary Alarm",
	13: "24hr Tamper Alarm",
	14: "Exit Terminator",
	15: "Keyswitch - Momentary",
	16: "Keyswitch - Latching",
	17: "Security Key",
	18: "Omit Key",
	19: "Custom Alarm",
	20: "Confirmed PA Audible",
	21: "Confirmed PA Silent",
}

func (t ZoneType) String() string {
	if name, ok := zoneTypeNames[t]; ok {
		return name
	}
	if t == ZoneTypeUnused {
		return "Not Used"
	}

	return fmt.Sprintf("Zone Type %d", byte(t))
}

// LogEventType identifies what a panel log entry records.
type LogEventType byte

var logEventNames = map[LogEventType]string{
	1:   "Entry/Exit 1",
	2:   "Entry/Exit 2",
	3:   "Interior",
	4:   "Perimeter",
	5:   "24hr Audible",
	6:   "24hr Silent",
	7:   "Audible PA",
	8:   "Silent PA",
	9:   "Fire Alarm",
	10:  "Medical",
	11:  "24Hr Gas Alarm",
	12:  "Auxiliary Alarm",
	13:  "24hr Tamper Alarm",
	14:  "Exit Terminator",
	15:  "Keyswitch - Momentary",
	16:  "Keyswitch - Latching",
	17:  "Security Key",
	18:  "Omit Key",
	19:  "Custom Alarm",
	20:  "Confirmed PA Audible",
	21:  "Confirmed PA Silent",
	22:  "Keypad Medical",
	23:  "Keypad Fire",
	24:  "Keypad Audible PA",
	25:  "Keypad Silent PA",
	26:  "Duress Code Alarm",
	27:  "Alarm Active",
	28:  "Bell Active",
	29:  "Re-arm",
	30:  "Verified Cross Zone Alarm",
	31:  "User Code",
	32:  "Exit Started",
	33:  "Exit Error (Arming Failed)",
	34:  "Entry Started",
	35:  "Part Arm Suite",
	36:  "Armed with Line Fault",
	37:  "Open/Close (Away Armed)",
	38:  "Part Armed",
	39:  "Auto Open/Close",
	40:  "Auto Arm Deferred",
	41:  "Open After Alarm (Alarm Abort)",
	42:  "Remote Open/Close",
	43:  "Quick Arm",
	44:  "Recent Closing",
	45:  "Reset After Alarm",
	46:  "Power O/P Fault",
	47:  "AC Fail",
	48:  "Low Battery",
	49:  "System Power Up",
	50:  "Mains Over Voltage",
	51:  "Telephone Line Fault",
	52:  "Fail to Communicate",
	53:  "Download Start",
	54:  "Download End",
	55:  "Log Capacity Alert (80%)",
	56:  "Date Changed",
	57:  "Time Changed",
	58:  "Installer Programming Start",
	59:  "Installer Programming End",
	60:  "Panel Box Tamper",
	61:  "Bell Tamper",
	62:  "Auxiliary Tamper",
	63:  "Expander Tamper",
	64:  "Keypad Tamper",
	65:  "Expander Trouble (Network error)",
	66:  "Remote Keypad Trouble (Network error)",
	67:  "Fire Zone Tamper",
	68:  "Zone Tamper",
	69:  "Keypad Lockout",
	70:  "Code Tamper Alarm",
	71:  "Soak Test Alarm",
	72:  "Manual Test Transmission",
	73:  "Automatic Test Transmission",
	74:  "User Walk Test Start/End",
	75:  "NVM Defaults Loaded",
	76:  "First Knock",
	77:  "Door Access",
	78:  "Part Arm 1",
	79:  "Part Arm 2",
	80:  "Part Arm 3",
	81:  "Auto Arming Started",
	82:  "Confirmed Alarm",
	83:  "Prox Tag",
	84:  "Access Code Changed/Deleted",
	85:  "Arm Failed",
	86:  "Log Cleared",
	87:  "iD Loop Shorted",
	88:  "Communication Port",
	89:  "TAG System Exit (Batt. OK)",
	90:  "TAG System Exit (Batt. LOW)",
	91:  "TAG System Entry (Batt. OK)",
	92:  "TAG System Entry (Batt. LOW)",
	93:  "Microphone Activated",
	94:  "AV Cleared Down",
	95:  "Monitored Alarm",
	96:  "Expander Low Voltage",
	97:  "Supervision Fault",
	98:  "PA from Remote FOB",
	99:  "RF Device Low Battery",
	100: "Site Data Changed",
	101: "Radio Jamming",
	102: "Test Call Passed",
	103: "Test Call Failed",
	104: "Zone Fault",
	105: "Zone Masked",
	106: "Faults Overridden",
	107: "PSU AC Fail",
	108: "PSU Battery Fail",
	109: "PSU Low Output Fail",
	110: "PSU Tamper",
	111: "Door Access",
	112: "CIE Reset",
	113: "Remote Command",
	114: "User Added",
	115: "User Deleted",
	116: "Confirmed PA",
	117: "User Acknowledged",
	118: "Power Unit Failure",
	119: "Battery Charger Fault",
	120: "Confirmed Intruder",
	121: "GSM Tamper",
	122: "Radio Config. Failure",
}

func (t LogEventType) String() string {
	if name, ok := logEventNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Unknown log event type %d", byte(t))
}

// LogEventGroup classifies a log entry for ARC reporting purposes.
type LogEventGroup byte

var logEventGroupNames = map[LogEventGroup]string{
	0:  "Not Reported",
	1:  "Priority Alarm",
	2:  "Priority Alarm Restore",
	3:  "Alarm",
	4:  "Restore",
	5:  "Open",
	6:  "Close",
	7:  "Bypassed",
	8:  "Unbypassed",
	9:  "Maintenance Alarm",
	10: "Maintenance Restore",
	11: "Tamper Alarm",
	12: "Tamper Restore",
	13: "Test Start",
	14: "Test End",
	15: "Disarmed",
	16: "Armed",
	17: "Tested",
	18: "Started",
	19: "Ended",
	20: "Fault",
	21: "Omitted",
	22: "Reinstated",
	23: "Stopped",
	24: "Start",
	25: "Deleted",
	26: "Active",
	27: "Not Used",
	28: "Changed",
	29: "Low Battery",
	30: "Radio",
	31: "Deactivated",
	32: "Added",
	33: "Bad Action",
	34: "PA Timer Reset",
	35: "PA Zone Lockout",
}

func (g LogEventGroup) String() string {
	if name, ok := logEventGroupNames[g]; ok {
		return name
	}

	return fmt.Sprintf("Unknown log event group type %d", byte(g))
}
