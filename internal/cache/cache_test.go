package cache

import (
	"context"
	"testing"
	"time"
)

func TestDisabledStoreIsAlwaysEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range map[string]*Store{"nil store": nil, "nil client": New(nil, nil), "zero": {}} {
		t.Run(name, func(t *testing.T) {
			if s.Enabled() {
				t.Fatal("enabled without a client")
			}
			if err := s.Ping(ctx); err != nil {
				t.Fatal(err)
			}
			s.SetJSON(ctx, SessionKey("rider-a"), map[string]string{"id": "rider-a"}, time.Minute)
			var dst map[string]string
			if s.GetJSON(ctx, SessionKey("rider-a"), &dst) {
				t.Fatal("hit on a disabled cache")
			}
			s.Delete(ctx, SessionKey("rider-a"))
			s.DeletePrefix(ctx, RideRequestsPrefix())
		})
	}
}

func TestKeys(t *testing.T) {
	if SessionKey("a") != "session:a" || DriverLocationKey("d") != "driver:location:d" || RideRequestsKey(20) != "ride:requests:20" {
		t.Fatal("unexpected key layout")
	}
	if RideRequestsKey(5)[:len(RideRequestsPrefix())] != RideRequestsPrefix() {
		t.Fatal("page key does not share the prefix")
	}
}
