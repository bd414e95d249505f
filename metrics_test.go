package netstack

import "testing"

func TestMetricsFrameCounters(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.FramesReceived != 0 {
		t.Errorf("expected 0 initial frames received, got %d", snap.FramesReceived)
	}

	m.recordFrameReceived(64, true)
	m.recordFrameReceived(128, true)
	m.recordFrameReceived(32, false)
	m.recordFrameSent(100, true)

	snap = m.Snapshot()
	if snap.FramesReceived != 3 {
		t.Errorf("FramesReceived = %d, want 3", snap.FramesReceived)
	}
	if snap.FramesReceivedErrors != 1 {
		t.Errorf("FramesReceivedErrors = %d, want 1", snap.FramesReceivedErrors)
	}
	if snap.BytesReceived != 192 {
		t.Errorf("BytesReceived = %d, want 192", snap.BytesReceived)
	}
	if snap.FramesSent != 1 {
		t.Errorf("FramesSent = %d, want 1", snap.FramesSent)
	}
	if snap.BytesSent != 100 {
		t.Errorf("BytesSent = %d, want 100", snap.BytesSent)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.recordFrameReceived(64, true)
	m.ReassemblyGiveUps.Add(1)
	m.QueueFulls.Add(2)

	m.Reset()
	snap := m.Snapshot()
	if snap.FramesReceived != 0 || snap.ReassemblyGiveUps != 0 || snap.QueueFulls != 0 {
		t.Errorf("Reset left nonzero counters: %+v", snap)
	}
}

func TestMetricsUptimeFreezesOnStop(t *testing.T) {
	m := NewMetrics()
	m.Stop()
	first := m.Snapshot().UptimeNs
	second := m.Snapshot().UptimeNs
	if first != second {
		t.Errorf("uptime changed after Stop: %d then %d", first, second)
	}
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveFrameReceived(10, true)
	obs.ObserveFrameSent(20, false)
	obs.ObserveReassemblyComplete(100, 4)
	obs.ObserveReassemblyGiveUp()
	obs.ObserveSendGiveUp()
	obs.ObserveDuplicateFragment()
	obs.ObserveQueueFull()

	snap := m.Snapshot()
	if snap.FramesReceived != 1 || snap.BytesReceived != 10 {
		t.Errorf("ObserveFrameReceived not recorded: %+v", snap)
	}
	if snap.FramesSent != 1 || snap.FramesSentErrors != 1 {
		t.Errorf("ObserveFrameSent not recorded: %+v", snap)
	}
	if snap.ReassemblyCompletions != 1 {
		t.Errorf("ObserveReassemblyComplete not recorded: %+v", snap)
	}
	if snap.ReassemblyGiveUps != 1 {
		t.Errorf("ObserveReassemblyGiveUp not recorded: %+v", snap)
	}
	if snap.SendGiveUps != 1 {
		t.Errorf("ObserveSendGiveUp not recorded: %+v", snap)
	}
	if snap.DuplicateFragments != 1 {
		t.Errorf("ObserveDuplicateFragment not recorded: %+v", snap)
	}
	if snap.QueueFulls != 1 {
		t.Errorf("ObserveQueueFull not recorded: %+v", snap)
	}
}

func TestNoOpObserverDiscardsEverything(t *testing.T) {
	var obs Observer = NoOpObserver{}
	obs.ObserveFrameReceived(1, true)
	obs.ObserveFrameSent(1, true)
	obs.ObserveReassemblyComplete(1, 1)
	obs.ObserveReassemblyGiveUp()
	obs.ObserveSendGiveUp()
	obs.ObserveDuplicateFragment()
	obs.ObserveQueueFull()
}
