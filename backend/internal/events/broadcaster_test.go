package events

import (
	"testing"
	"time"
)

func drainType(t *testing.T, ch *Channel, want string) Event {
	t.Helper()
	// 心跳可能混在里面，跳过
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				t.Fatalf("channel closed while waiting for %q", want)
			}
			if ev.Type == TypeHeartbeat {
				continue
			}
			if ev.Type != want {
				t.Fatalf("expected event %q, got %q", want, ev.Type)
			}
			return ev
		case <-deadline:
			t.Fatalf("timeout waiting for event %q", want)
		}
	}
}

func TestPublish_DeliversToAllInOrder(t *testing.T) {
	b := NewBroadcaster()
	chA := b.Connect(1)
	chB := b.Connect(2)
	defer b.Disconnect(chA)
	defer b.Disconnect(chB)

	b.Publish(Event{Type: TypeLockAcquired})
	b.Publish(Event{Type: TypeDocumentChanged})

	for _, ch := range []*Channel{chA, chB} {
		drainType(t, ch, TypeLockAcquired)
		drainType(t, ch, TypeDocumentChanged)
	}
}

func TestPublish_FailedChannelIsIsolated(t *testing.T) {
	b := NewBroadcaster()
	chA := b.Connect(1)
	chB := b.Connect(2)
	defer b.Disconnect(chA)
	defer b.Disconnect(chB)

	// 人为塞满 A 的队列，模拟投递失败
	for chA.trySend(Event{Type: TypeTaskChanged}) {
	}

	// Publish 不应因 A 失败而报错或漏发 B
	b.Publish(Event{Type: TypeDocumentChanged})
	drainType(t, chB, TypeDocumentChanged)
}

func TestConnect_ReplacesPreviousChannel(t *testing.T) {
	b := NewBroadcaster()
	old := b.Connect(1)
	fresh := b.Connect(1)
	defer b.Disconnect(fresh)

	// 旧通道被显式关闭
	select {
	case _, ok := <-old.Events():
		if ok {
			t.Fatal("expected old channel to be closed, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("old channel was not closed on duplicate connect")
	}

	b.Publish(Event{Type: TypeLockReleased})
	drainType(t, fresh, TypeLockReleased)

	// 断开已被替换的旧通道不能误伤新通道
	b.Disconnect(old)
	b.Publish(Event{Type: TypeLockBroken})
	drainType(t, fresh, TypeLockBroken)
}

func TestHeartbeat_PerChannel(t *testing.T) {
	b := NewBroadcasterWithHeartbeat(20 * time.Millisecond)
	chA := b.Connect(1)
	chB := b.Connect(2)

	waitHeartbeat := func(ch *Channel) {
		t.Helper()
		select {
		case ev, ok := <-ch.Events():
			if !ok || ev.Type != TypeHeartbeat {
				t.Fatalf("expected heartbeat, got %v (open=%t)", ev.Type, ok)
			}
		case <-time.After(time.Second):
			t.Fatal("no heartbeat received")
		}
	}
	waitHeartbeat(chA)
	waitHeartbeat(chB)

	// 断开 A 只停 A 自己的心跳
	b.Disconnect(chA)
	waitHeartbeat(chB)

	select {
	case ev, ok := <-chA.Events():
		if ok {
			t.Fatalf("disconnected channel still received %q", ev.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("disconnected channel was not closed")
	}
	b.Disconnect(chB)
}

func TestConnectedUsers(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Connect(7)
	users := b.ConnectedUsers()
	if len(users) != 1 || users[0] != 7 {
		t.Fatalf("expected [7], got %v", users)
	}
	b.Disconnect(ch)
	if got := b.ConnectedUsers(); len(got) != 0 {
		t.Fatalf("expected no users after disconnect, got %v", got)
	}
}
