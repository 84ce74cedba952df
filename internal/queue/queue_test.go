package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
)

func TestNewRideEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("PKT", 5*3600))
	ride := model.Ride{ID: "ride-1", RiderID: "rider-a", Status: model.RideStatusPending}
	ev := NewRideEvent(model.EventRideRequested, ride, "rider-a", at)
	if ev.DriverID != "" || ev.OccurredAt.Location() != time.UTC || ev.Ride == nil {
		t.Fatalf("event %+v", ev)
	}
	if got := ev.Recipients(); len(got) != 1 || got[0] != "rider-a" {
		t.Fatalf("recipients %v", got)
	}

	d := "driver-b"
	ride.DriverID = &d
	ev = NewRideEvent(model.EventRideAccepted, ride, d, at)
	if got := ev.Recipients(); len(got) != 2 || got[1] != "driver-b" {
		t.Fatalf("recipients %v", got)
	}
}

func TestFormatLine(t *testing.T) {
	ev := RideEvent{
		Type:       model.EventRideCancelled,
		RideID:     "ride-1",
		RiderID:    "rider-a",
		Status:     model.RideStatusCancelled,
		ActorID:    "rider-a",
		OccurredAt: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC),
	}
	want := "[2025-03-01T07:00:00Z] ride.cancelled | ride_id=ride-1 | status=cancelled | rider_id=rider-a | driver_id=- | actor_id=rider-a\n"
	if got := FormatLine(ev); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestHandleMessageAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	for _, typ := range []string{model.EventRideRequested, model.EventRideAccepted} {
		body, _ := json.Marshal(RideEvent{Type: typ, RideID: "ride-1", RiderID: "rider-a", OccurredAt: time.Now()})
		if err := HandleMessage(dir, body); err != nil {
			t.Fatal(err)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "rides.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "ride.accepted") {
		t.Fatalf("log %q", b)
	}
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{`not json`, `{}`, `{"type":"ride.requested"}`} {
		if err := HandleMessage(dir, []byte(body)); err == nil {
			t.Errorf("HandleMessage(%s) succeeded", body)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "rides.log")); !os.IsNotExist(err) {
		t.Fatal("rejected payload created the log")
	}
}

func TestDisabledPublisherDropsEvents(t *testing.T) {
	var nilPub *Publisher
	if err := nilPub.Publish(context.Background(), RideEvent{Type: "x"}); err != nil {
		t.Fatal(err)
	}
	p := NewPublisher(Config{Enabled: false, URL: "amqp://nowhere"}, nil)
	if err := p.Publish(context.Background(), RideEvent{Type: "x"}); err != nil {
		t.Fatal(err)
	}
}
