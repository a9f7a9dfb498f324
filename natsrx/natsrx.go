// NATS bridge for RxGo
// NATS桥接：把NATS主题作为热Observable订阅，或把流发布到NATS主题
package natsrx

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/xinjiayu/rxgo/v2"
)

// ErrConnectionClosed NATS连接在订阅期间关闭
var ErrConnectionClosed = errors.New("natsrx: connection closed")

// FromSubject 每次订阅时在conn上订阅subject，每条消息作为一个值发射。
// 释放订阅时取消NATS订阅。订阅失败时以错误终止。
func FromSubject(conn *nats.Conn, subject string) rxgo.Observable[*nats.Msg] {
	return subscribe(conn, subject, "")
}

// FromQueue 以队列组方式订阅subject，同组订阅者之间负载均衡
func FromQueue(conn *nats.Conn, subject, queue string) rxgo.Observable[*nats.Msg] {
	return subscribe(conn, subject, queue)
}

func subscribe(conn *nats.Conn, subject, queue string) rxgo.Observable[*nats.Msg] {
	return rxgo.Create(func(subscriber rxgo.Subscriber[*nats.Msg]) rxgo.Teardown {
		if conn == nil || conn.IsClosed() {
			subscriber.OnError(ErrConnectionClosed)
			return nil
		}

		handler := func(msg *nats.Msg) {
			subscriber.OnNext(msg)
		}

		var (
			sub *nats.Subscription
			err error
		)
		if queue == "" {
			sub, err = conn.Subscribe(subject, handler)
		} else {
			sub, err = conn.QueueSubscribe(subject, queue, handler)
		}
		if err != nil {
			subscriber.OnError(fmt.Errorf("natsrx: subscribe %s: %w", subject, err))
			return nil
		}

		return func() {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				rxgo.Logger().Warn("nats unsubscribe failed", "subject", subject, "error", err)
			}
		}
	})
}

// Data 把消息流映射为消息体
func Data() rxgo.OperatorFunc[*nats.Msg, []byte] {
	return rxgo.MapValue(func(msg *nats.Msg) []byte { return msg.Data })
}

// Publisher 把收到的每个值发布到subject的观察者。
// 发布失败会记录日志，流终止时刷新连接缓冲区。
type Publisher struct {
	conn    *nats.Conn
	subject string
	done    chan error
}

// NewPublisher 创建发布到subject的观察者
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject, done: make(chan error, 1)}
}

// OnNext 发布data
func (p *Publisher) OnNext(data []byte) {
	if err := p.conn.Publish(p.subject, data); err != nil {
		rxgo.Logger().Error("nats publish failed", "subject", p.subject, "error", err)
	}
}

// OnError 上游出错，刷新后记录错误
func (p *Publisher) OnError(err error) {
	_ = p.conn.Flush()
	p.done <- err
}

// OnComplete 上游完成，刷新连接
func (p *Publisher) OnComplete() {
	p.done <- p.conn.Flush()
}

// Done 上游终止并刷新后收到终止原因，nil表示正常完成
func (p *Publisher) Done() <-chan error {
	return p.done
}

var _ rxgo.Observer[[]byte] = (*Publisher)(nil)
