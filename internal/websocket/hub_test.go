package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient 构造只带发送通道的客户端，房间订阅和推送不依赖底层连接
func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		ID:       id,
		PlayerID: "player-" + id,
		Hub:      hub,
		Send:     make(chan []byte, 8),
	}
}

func TestSubscribeAndSendToRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c1 := newTestClient(hub, "c1")
	c2 := newTestClient(hub, "c2")

	hub.subscribeRoom(c1, "ROOM01")
	hub.subscribeRoom(c2, "ROOM01")
	assert.Equal(t, 2, hub.GetRoomSubscribers("ROOM01"))
	assert.Equal(t, "ROOM01", hub.roomOf(c1))

	msg := &Message{Type: MessageTypeMatchUpdate, Timestamp: time.Now().Unix()}
	require.NoError(t, hub.SendToRoom("ROOM01", msg))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Send:
			assert.Contains(t, string(data), MessageTypeMatchUpdate)
			assert.Contains(t, string(data), "ROOM01")
		default:
			t.Fatalf("客户端 %s 没有收到房间推送", c.ID)
		}
	}
}

func TestSendToRoomWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())

	err := hub.SendToRoom("EMPTY1", &Message{Type: MessageTypeMatchUpdate})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestResubscribeMovesRooms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient(hub, "c1")

	hub.subscribeRoom(c, "ROOM01")
	hub.subscribeRoom(c, "ROOM02")

	assert.Equal(t, 0, hub.GetRoomSubscribers("ROOM01"))
	assert.Equal(t, 1, hub.GetRoomSubscribers("ROOM02"))
	assert.Equal(t, "ROOM02", hub.roomOf(c))

	hub.unsubscribeRoom(c)
	assert.Equal(t, 0, hub.GetRoomSubscribers("ROOM02"))
	assert.Equal(t, "", hub.roomOf(c))
}

// 房间推送和订阅来自不同goroutine，快照遍历必须经得起并发改写
func TestRoomSendDuringSubscribeChurn(t *testing.T) {
	hub := NewHub(zap.NewNop())
	clients := make([]*Client, 8)
	for i := range clients {
		clients[i] = newTestClient(hub, fmt.Sprintf("c%d", i))
	}

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			c := clients[i%len(clients)]
			if i%3 == 0 {
				hub.unsubscribeRoom(c)
			} else {
				hub.subscribeRoom(c, "ROOM01")
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			hub.SendToRoom("ROOM01", &Message{
				Type:      MessageTypeMatchUpdate,
				Timestamp: time.Now().Unix(),
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_ = hub.roomOf(clients[i%len(clients)])
		}
	}()

	wg.Wait()
}
