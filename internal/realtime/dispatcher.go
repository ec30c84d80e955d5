package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bustrack-backend/internal/auth"
	"bustrack-backend/internal/gps"
	"bustrack-backend/internal/model"
	"bustrack-backend/internal/relay"
)

// Relay channels. Every gateway subscribes to the firehose channel; the
// per-bus channels exist for external vehicle-scoped consumers.
const (
	ChannelLocationUpdates   = "bus_location_updates"
	ChannelUserNotifications = "user_notification_events"
)

func busLocationChannel(busID string) string {
	return ChannelLocationUpdates + ":" + busID
}

// BusResolver resolves the buses an identity should auto-subscribe to.
type BusResolver interface {
	BusIDsForUser(ctx context.Context, userID, role string) ([]string, error)
}

// Persister accepts durable location writes, fire-and-forget.
type Persister interface {
	Dispatch(rec model.BusLocation)
}

// Config holds the dispatcher tuning knobs.
type Config struct {
	PersistEveryN int
	LocationTTL   time.Duration
}

// Dispatcher is the broadcast orchestrator: it authenticates connections,
// derives room membership, ingests position reports and fans them out to
// local sessions and to other gateway processes through the relay.
type Dispatcher struct {
	instanceID string
	cfg        Config

	verifier  auth.CredentialVerifier
	resolver  BusResolver
	cache     gps.LocationCache
	throttle  *gps.Throttle
	relay     relay.Relay
	persister Persister

	sessions *SessionRegistry
	rooms    *RoomDirectory
}

// NewDispatcher wires a dispatcher and registers its relay subscriptions.
func NewDispatcher(
	instanceID string,
	cfg Config,
	verifier auth.CredentialVerifier,
	resolver BusResolver,
	cache gps.LocationCache,
	rly relay.Relay,
	persister Persister,
) *Dispatcher {
	d := &Dispatcher{
		instanceID: instanceID,
		cfg:        cfg,
		verifier:   verifier,
		resolver:   resolver,
		cache:      cache,
		throttle:   gps.NewThrottle(cfg.PersistEveryN),
		relay:      rly,
		persister:  persister,
		sessions:   NewSessionRegistry(),
		rooms:      NewRoomDirectory(),
	}
	rly.Subscribe(ChannelLocationUpdates, d.onRelayLocation)
	rly.Subscribe(ChannelUserNotifications, d.onRelayNotification)
	return d
}

// Sessions exposes the registry for transports and health checks.
func (d *Dispatcher) Sessions() *SessionRegistry {
	return d.sessions
}

// Rooms exposes the room directory.
func (d *Dispatcher) Rooms() *RoomDirectory {
	return d.rooms
}

// Connect verifies the credential and, on success, registers the connection
// and joins its initial rooms. An error means the transport must be torn
// down; no room state exists for the connection in that case.
func (d *Dispatcher) Connect(ctx context.Context, connID, token string) (*Session, error) {
	identity, err := d.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("connection %s refused: %w", connID, err)
	}

	s := NewSession(connID, identity)
	if err := d.sessions.Register(s); err != nil {
		return nil, err
	}

	d.joinInitialRooms(ctx, s)
	log.Printf("client connected: %s, user: %s, role: %s", connID, identity.UserID, identity.Role)
	return s, nil
}

// joinInitialRooms derives room membership from the verified identity.
func (d *Dispatcher) joinInitialRooms(ctx context.Context, s *Session) {
	id := s.Identity

	d.rooms.Join(Room(KindUser, id.UserID), s.ID)
	d.rooms.Join(Room(KindRole, id.Role), s.ID)
	if id.CompanyID != "" {
		d.rooms.Join(Room(KindCompany, id.CompanyID), s.ID)
	}
	if id.SchoolID != "" {
		d.rooms.Join(Room(KindSchool, id.SchoolID), s.ID)
	}

	if id.IsTracker() {
		busIDs, err := d.resolver.BusIDsForUser(ctx, id.UserID, id.Role)
		if err != nil {
			log.Printf("could not resolve buses for user %s: %v", id.UserID, err)
		}
		for _, busID := range busIDs {
			d.rooms.Join(Room(KindBus, busID), s.ID)
		}
	}

	if id.IsAdmin() {
		d.rooms.Join(RoomDashboardAll, s.ID)
	}
}

// Disconnect removes the connection from every room it held and deregisters
// it. Idempotent; safe to call for unknown ids.
func (d *Dispatcher) Disconnect(connID string) {
	rooms := d.rooms.DropAll(connID)
	s := d.sessions.Deregister(connID)
	if s == nil {
		return
	}
	s.Close()
	log.Printf("client disconnected: %s, user: %s (left %d rooms)", connID, s.Identity.UserID, len(rooms))
}

// HandleMessage processes one inbound frame from an active connection.
// Malformed messages are rejected and logged; the connection stays open.
func (d *Dispatcher) HandleMessage(ctx context.Context, s *Session, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("malformed message from %s: %v", s.ID, err)
		return
	}

	switch msg.Type {
	case msgJoinRoom:
		d.handleJoin(s, msg.Kind, msg.ID)
	case msgLeaveRoom:
		d.handleLeave(s, msg.Kind, msg.ID)
	case msgPositionReport:
		d.handlePositionReport(ctx, s, msg)
	default:
		log.Printf("unknown message type %q from %s", msg.Type, s.ID)
	}
}

func (d *Dispatcher) handleJoin(s *Session, kind, id string) {
	room, err := authorizeRoom(s.Identity, kind, id)
	if err != nil {
		d.pushAck(s, roomAck{Type: msgRoomAck, Success: false, Error: err.Error()})
		return
	}
	d.rooms.Join(room, s.ID)
	d.pushAck(s, roomAck{Type: msgRoomAck, Success: true, Room: room})
}

func (d *Dispatcher) handleLeave(s *Session, kind, id string) {
	room, err := authorizeRoom(s.Identity, kind, id)
	if err != nil {
		d.pushAck(s, roomAck{Type: msgRoomAck, Success: false, Error: err.Error()})
		return
	}
	d.rooms.Leave(room, s.ID)
	d.pushAck(s, roomAck{Type: msgRoomAck, Success: true, Room: room})
}

// authorizeRoom validates a client-requested room subscription. Company and
// school rooms are tenant-bound; bus and trip ids are not secrets and stay
// open to any authenticated connection.
func authorizeRoom(identity auth.Identity, kind, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("room id is required")
	}
	switch kind {
	case KindUser:
		if id != identity.UserID {
			return "", fmt.Errorf("cannot join another user's room")
		}
	case KindRole:
		if id != identity.Role {
			return "", fmt.Errorf("cannot join another role's room")
		}
	case KindCompany:
		if id != identity.CompanyID {
			return "", fmt.Errorf("cannot join another company's room")
		}
	case KindSchool:
		if id != identity.SchoolID {
			return "", fmt.Errorf("cannot join another school's room")
		}
	case KindBus, KindTrip:
		// Open to any authenticated connection.
	case KindDashboard:
		if !identity.IsAdmin() {
			return "", fmt.Errorf("dashboard rooms require an admin role")
		}
	default:
		return "", fmt.Errorf("unknown room kind %q", kind)
	}
	return Room(kind, id), nil
}

func (d *Dispatcher) handlePositionReport(ctx context.Context, s *Session, msg inboundMessage) {
	if msg.BusID == "" || msg.Latitude == nil || msg.Longitude == nil {
		log.Printf("rejected position report from %s: missing bus id or coordinates", s.ID)
		return
	}

	sample := gps.Sample{
		BusID:     msg.BusID,
		Latitude:  *msg.Latitude,
		Longitude: *msg.Longitude,
		Heading:   msg.Heading,
		Accuracy:  msg.Accuracy,
	}
	if msg.Speed != nil {
		sample.Speed = *msg.Speed
	}
	if msg.Timestamp != nil {
		sample.Timestamp = *msg.Timestamp
	} else {
		sample.Timestamp = time.Now().UTC()
	}

	d.IngestSample(ctx, sample)
}

// IngestSample runs the position-report pipeline: cache write-through,
// throttled durable write, relay publish, local fan-out. Infrastructure
// failures degrade to local-only delivery and never abort the pipeline.
func (d *Dispatcher) IngestSample(ctx context.Context, sample gps.Sample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	if err := d.cache.Put(ctx, sample, d.cfg.LocationTTL); err != nil {
		log.Printf("location cache write failed for bus %s: %v", sample.BusID, err)
	}

	if d.throttle.ShouldPersist(sample.BusID) {
		d.persister.Dispatch(model.BusLocation{
			BusID:      sample.BusID,
			Latitude:   sample.Latitude,
			Longitude:  sample.Longitude,
			Speed:      sample.Speed,
			RecordedAt: sample.Timestamp,
		})
	}

	d.publishLocation(ctx, sample)
	d.fanOutLocation(sample)
}

func (d *Dispatcher) publishLocation(ctx context.Context, sample gps.Sample) {
	payload, err := json.Marshal(locationEnvelope{Origin: d.instanceID, Sample: sample})
	if err != nil {
		log.Printf("could not encode relay envelope for bus %s: %v", sample.BusID, err)
		return
	}
	if err := d.relay.Publish(ctx, ChannelLocationUpdates, payload); err != nil {
		log.Printf("relay publish failed: %v", err)
	}
	if err := d.relay.Publish(ctx, busLocationChannel(sample.BusID), payload); err != nil {
		log.Printf("relay publish failed: %v", err)
	}
}

// fanOutLocation pushes the sample to every local member of the bus room and
// of the dashboard broadcast room, at most once per connection.
func (d *Dispatcher) fanOutLocation(sample gps.Sample) {
	payload, err := json.Marshal(positionUpdate{Type: msgPositionUpdate, Sample: sample})
	if err != nil {
		log.Printf("could not encode position update for bus %s: %v", sample.BusID, err)
		return
	}

	targets := make(map[string]struct{})
	for _, connID := range d.rooms.Members(Room(KindBus, sample.BusID)) {
		targets[connID] = struct{}{}
	}
	for _, connID := range d.rooms.Members(RoomDashboardAll) {
		targets[connID] = struct{}{}
	}

	for connID := range targets {
		d.pushTo(connID, payload)
	}
}

// EmitToUser pushes an event to every connection in the user's room, on this
// process and, through the relay, on every other gateway process.
func (d *Dispatcher) EmitToUser(ctx context.Context, userID, event string, payload json.RawMessage) {
	env, err := json.Marshal(notificationEnvelope{
		Origin:  d.instanceID,
		UserID:  userID,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		log.Printf("could not encode notification for user %s: %v", userID, err)
		return
	}
	if err := d.relay.Publish(ctx, ChannelUserNotifications, env); err != nil {
		log.Printf("relay publish failed: %v", err)
	}
	d.fanOutNotification(userID, event, payload)
}

func (d *Dispatcher) fanOutNotification(userID, event string, payload json.RawMessage) {
	frame, err := json.Marshal(userNotification{Type: msgNewNotification, Event: event, Payload: payload})
	if err != nil {
		log.Printf("could not encode notification frame for user %s: %v", userID, err)
		return
	}
	for _, connID := range d.rooms.Members(Room(KindUser, userID)) {
		d.pushTo(connID, frame)
	}
}

// onRelayLocation repeats the local fan-out for samples published by other
// gateway processes.
func (d *Dispatcher) onRelayLocation(_ string, payload []byte) {
	var env locationEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("malformed relay envelope: %v", err)
		return
	}
	if env.Origin == d.instanceID {
		// Local fan-out already happened at ingest.
		return
	}
	d.fanOutLocation(env.Sample)
}

func (d *Dispatcher) onRelayNotification(_ string, payload []byte) {
	var env notificationEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("malformed relay envelope: %v", err)
		return
	}
	if env.Origin == d.instanceID {
		return
	}
	d.fanOutNotification(env.UserID, env.Event, env.Payload)
}

func (d *Dispatcher) pushAck(s *Session, ack roomAck) {
	payload, err := json.Marshal(ack)
	if err != nil {
		log.Printf("could not encode room ack for %s: %v", s.ID, err)
		return
	}
	if !s.Push(payload) {
		log.Printf("dropping slow client %s", s.ID)
		d.Disconnect(s.ID)
	}
}

func (d *Dispatcher) pushTo(connID string, payload []byte) {
	s, ok := d.sessions.Lookup(connID)
	if !ok {
		return
	}
	if !s.Push(payload) {
		log.Printf("dropping slow client %s", connID)
		d.Disconnect(connID)
	}
}
