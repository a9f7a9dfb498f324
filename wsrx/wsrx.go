// WebSocket bridge for RxGo
// WebSocket桥接：把连接上收到的帧作为Observable，把流写入连接
package wsrx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/xinjiayu/rxgo/v2"
)

// Message 一个WebSocket数据帧
type Message struct {
	Type int
	Data []byte
}

// Text 文本帧的内容
func (m Message) Text() string {
	return string(m.Data)
}

// closeGracePeriod 发送关闭帧的写超时
const closeGracePeriod = time.Second

// FromConn 在conn上读取帧直到对端关闭。
// 正常关闭视为完成，其他读错误以错误终止。释放订阅时关闭conn。
// 一个连接同一时刻只能有一个读者，因此conn只应被订阅一次。
func FromConn(conn *websocket.Conn) rxgo.Observable[Message] {
	return rxgo.Create(func(subscriber rxgo.Subscriber[Message]) rxgo.Teardown {
		go readLoop(conn, subscriber)
		return func() { _ = conn.Close() }
	})
}

// Dial 每次订阅时拨号url并读取帧，释放订阅时关闭连接
func Dial(url string, header http.Header) rxgo.Observable[Message] {
	return rxgo.Create(func(subscriber rxgo.Subscriber[Message]) rxgo.Teardown {
		ctx, cancel := context.WithCancel(context.Background())

		var (
			mu     sync.Mutex
			conn   *websocket.Conn
			closed bool
		)

		go func() {
			c, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			if err != nil {
				if ctx.Err() == nil {
					subscriber.OnError(fmt.Errorf("wsrx: dial %s: %w", url, err))
				}
				return
			}

			mu.Lock()
			if closed {
				mu.Unlock()
				_ = c.Close()
				return
			}
			conn = c
			mu.Unlock()

			readLoop(c, subscriber)
		}()

		return func() {
			cancel()
			mu.Lock()
			closed = true
			c := conn
			mu.Unlock()
			if c != nil {
				_ = c.Close()
			}
		}
	})
}

func readLoop(conn *websocket.Conn, subscriber rxgo.Subscriber[Message]) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if subscriber.IsUnsubscribed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				subscriber.OnComplete()
				return
			}
			subscriber.OnError(err)
			return
		}
		subscriber.OnNext(Message{Type: messageType, Data: data})
	}
}

// Writer 把收到的每个值作为一帧写入连接的观察者。
// 上游完成时发送正常关闭帧，上游出错时发送内部错误关闭帧。
type Writer struct {
	conn        *websocket.Conn
	messageType int
	done        chan error
}

// NewWriter 创建写入conn的观察者，messageType为websocket.TextMessage或BinaryMessage
func NewWriter(conn *websocket.Conn, messageType int) *Writer {
	return &Writer{conn: conn, messageType: messageType, done: make(chan error, 1)}
}

// OnNext 写入一帧，写失败记录日志
func (w *Writer) OnNext(data []byte) {
	if err := w.conn.WriteMessage(w.messageType, data); err != nil {
		rxgo.Logger().Error("websocket write failed", "error", err)
	}
}

// OnError 发送错误关闭帧
func (w *Writer) OnError(err error) {
	w.close(websocket.CloseInternalServerErr, err.Error())
	w.done <- err
}

// OnComplete 发送正常关闭帧
func (w *Writer) OnComplete() {
	w.done <- w.close(websocket.CloseNormalClosure, "")
}

// Done 上游终止且关闭帧发出后收到终止原因
func (w *Writer) Done() <-chan error {
	return w.done
}

func (w *Writer) close(code int, text string) error {
	msg := websocket.FormatCloseMessage(code, closeReason(text))
	err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// maxCloseReason 关闭帧reason的最大字节数
const maxCloseReason = 123

// closeReason 按字符边界截断到maxCloseReason字节以内
func closeReason(text string) string {
	if len(text) <= maxCloseReason {
		return text
	}
	end := maxCloseReason
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[:end]
}

var _ rxgo.Observer[[]byte] = (*Writer)(nil)
