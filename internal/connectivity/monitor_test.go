package connectivity

import "testing"

func TestMonitorStartsOnline(t *testing.T) {
	m := NewMonitor(nil)
	if !m.IsOnline() {
		t.Error("Expected monitor to start online")
	}
}

func TestSubscriberSeesEachTransitionOnce(t *testing.T) {
	m := NewMonitor(nil)

	var events []bool
	m.Subscribe(func(online bool) {
		events = append(events, online)
	})

	m.Set(false)
	m.Set(false) // duplicate, must not notify
	m.Set(true)
	m.Set(true) // duplicate, must not notify
	m.Set(false)

	want := []bool{false, true, false}
	if len(events) != len(want) {
		t.Fatalf("Expected %d notifications, got %d: %v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("Notification %d: expected %v, got %v", i, want[i], events[i])
		}
	}
}

func TestMultipleSubscribersAllNotified(t *testing.T) {
	m := NewMonitor(nil)

	var first, second int
	m.Subscribe(func(bool) { first++ })
	m.Subscribe(func(bool) { second++ })

	m.Set(false)
	m.Set(true)

	if first != 2 || second != 2 {
		t.Errorf("Expected both subscribers to see 2 transitions, got %d and %d", first, second)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m := NewMonitor(nil)

	var count int
	unsub := m.Subscribe(func(bool) { count++ })

	m.Set(false)
	unsub()
	m.Set(true)

	if count != 1 {
		t.Errorf("Expected 1 notification after unsubscribe, got %d", count)
	}
}
