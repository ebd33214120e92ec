package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luma/argus/protocol"
	"github.com/luma/argus/storage"
)

// Snapshot is the cached, last-observed panel state, kept in a queryable
// JSON document. It is written only by the dispatcher and the poller
// response path; anything else just reads. It is best effort: the panel
// is the source of truth and no freshness is guaranteed beyond "last
// observed".
type Snapshot struct {
	store storage.Store
	log   *zap.Logger
}

func NewSnapshot(store storage.Store, log *zap.Logger) *Snapshot {
	return &Snapshot{
		store: store,
		log:   log,
	}
}

// Document returns the whole snapshot as JSON.
func (s *Snapshot) Document() []byte {
	return s.store.Document()
}

func (s *Snapshot) SetZoneEvent(ev *protocol.ZoneEvent) {
	path := zonePath(ev.Zone)
	s.set(path+".state", ev.State.String())
	s.set(path+".observedAt", ev.Time.Format(time.RFC3339))
	if ev.Alarmed {
		s.set(path+".alarmed", true)
	}
}

func (s *Snapshot) SetZoneDetails(zd *ZoneDetails) {
	path := zonePath(zd.Number)
	s.set(path+".name", zd.Name)
	s.set(path+".type", zd.Type.String())
}

func (s *Snapshot) SetAreaEvent(ev *protocol.AreaEvent) {
	s.set(areaPath(ev.Area)+".state", ev.State.String())
}

func (s *Snapshot) SetAreaDetails(ad *AreaDetails) {
	path := areaPath(ad.Number)
	s.set(path+".name", ad.Name)
	s.set(path+".exitDelay", ad.ExitDelay)
	s.set(path+".entry1Delay", ad.Entry1Delay)
	s.set(path+".entry2Delay", ad.Entry2Delay)
}

func (s *Snapshot) SetIdentity(id *PanelIdentity) {
	s.set("panel.model", id.Model)
	s.set("panel.zones", id.Zones)
	s.set("panel.firmware", id.Firmware)
}

func (s *Snapshot) SetPanelTime(t time.Time) {
	s.set("panel.time", t.Format(time.RFC3339))
	s.set("panel.timeObservedAt", time.Now().Format(time.RFC3339))
}

func (s *Snapshot) SetPower(p *SystemPower) {
	s.set("power.systemVoltage", p.SystemVoltage)
	s.set("power.batteryVoltage", p.BatteryVoltage)
	s.set("power.systemCurrent", p.SystemCurrent)
	s.set("power.batteryCurrent", p.BatteryCurrent)
	s.set("power.observedAt", time.Now().Format(time.RFC3339))
}

func (s *Snapshot) SetLogPointer(pointer int) {
	s.set("panel.logPointer", pointer)
}

func (s *Snapshot) SetLastLogEvent(ev *protocol.LogEvent) {
	s.set("panel.lastLogEvent", ev.String())
}

// ZoneName returns the cached name of a zone from site data, or "" when
// the zone has not been synced.
func (s *Snapshot) ZoneName(zone int) string {
	raw, err := s.store.Get(context.Background(), zonePath(zone)+".name")
	if err != nil {
		return ""
	}

	return strings.Trim(string(raw), `"`)
}

func (s *Snapshot) set(path string, value interface{}) {
	if err := s.store.Set(context.Background(), path, value); err != nil {
		// The snapshot is a cache; failing to record an observation must
		// never disturb the read path.
		s.log.Warn("Failed to record snapshot field",
			zap.String("path", path),
			zap.Error(err))
	}
}

// sjson treats bare numeric path elements as array indexes, so zone and
// area keys carry a prefix.
func zonePath(zone int) string {
	return fmt.Sprintf("zones.zone%d", zone)
}

func areaPath(area int) string {
	return fmt.Sprintf("areas.area%d", area)
}
