package server_test

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tabcoach/tabcoach/pkg/types"
)

func dialChannel() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/channel"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	Expect(err).NotTo(HaveOccurred())
	return conn
}

func nextEvent(conn *websocket.Conn) types.StreamEvent {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev types.StreamEvent
	Expect(conn.ReadJSON(&ev)).To(Succeed())
	return ev
}

var _ = Describe("Chat Streaming", func() {
	var conn *websocket.Conn

	BeforeEach(func() {
		conn = dialChannel()
	})

	AfterEach(func() {
		conn.Close()
		testServer.Do("DELETE", "/tab/stream-tab", nil)
	})

	It("streams a full turn and closes with the final response", func() {
		Expect(conn.WriteJSON(types.ChannelMessage{
			Type:      types.MsgSendChatStream,
			TabID:     "stream-tab",
			RequestID: "req-1",
			Text:      "how should I approach this?",
		})).To(Succeed())

		ev := nextEvent(conn)
		Expect(ev.Type).To(Equal(types.EvStreamStart))
		Expect(ev.RequestID).To(Equal("req-1"))

		var assembled strings.Builder
		for {
			ev = nextEvent(conn)
			if ev.Type != types.EvStreamChunk {
				break
			}
			assembled.WriteString(ev.Chunk)
		}

		Expect(ev.Type).To(Equal(types.EvStreamDone))
		Expect(ev.Response).To(Equal("Try two pointers."))
		Expect(assembled.String()).To(Equal(ev.Response))
		Expect(ev.History).To(HaveLen(2))
		Expect(ev.History[0].Role).To(Equal(types.RoleUser))
		Expect(ev.History[1].Role).To(Equal(types.RoleAssistant))
	})

	It("answers blank input with a single error frame", func() {
		Expect(conn.WriteJSON(types.ChannelMessage{
			Type:      types.MsgSendChatStream,
			TabID:     "stream-tab",
			RequestID: "req-blank",
			Text:      "  ",
		})).To(Succeed())

		ev := nextEvent(conn)
		Expect(ev.Type).To(Equal(types.EvStreamError))
		Expect(ev.RequestID).To(Equal("req-blank"))
		Expect(ev.Error).NotTo(BeEmpty())
	})

	It("remembers the exchange across turns", func() {
		Expect(conn.WriteJSON(types.ChannelMessage{
			Type:      types.MsgSendChatStream,
			TabID:     "stream-tab",
			RequestID: "req-a",
			Text:      "first question",
		})).To(Succeed())

		var done types.StreamEvent
		for {
			done = nextEvent(conn)
			if done.Type == types.EvStreamDone || done.Type == types.EvStreamError {
				break
			}
		}
		Expect(done.Type).To(Equal(types.EvStreamDone))

		Expect(conn.WriteJSON(types.ChannelMessage{
			Type:      types.MsgSendChatStream,
			TabID:     "stream-tab",
			RequestID: "req-b",
			Text:      "second question",
		})).To(Succeed())

		for {
			done = nextEvent(conn)
			if done.Type == types.EvStreamDone || done.Type == types.EvStreamError {
				break
			}
		}
		Expect(done.Type).To(Equal(types.EvStreamDone))
		Expect(done.History).To(HaveLen(4))
		Expect(done.History[0].Content).To(Equal("first question"))
		Expect(done.History[2].Content).To(Equal("second question"))
	})
})
