// HTTP sources for RxGo
// HTTP源：订阅时发起请求，成功时发射一次响应然后完成，失败或非2xx时发出错误
package rxgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response 一次完成的HTTP响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// FromHTTP 每次订阅时用client执行newRequest构造的请求。
// 请求携带的上下文在订阅释放时取消。
func FromHTTP(client *http.Client, newRequest func(ctx context.Context) (*http.Request, error)) Observable[Response] {
	if client == nil {
		client = http.DefaultClient
	}

	return Create(func(subscriber Subscriber[Response]) Teardown {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			defer cancel()

			req, err := newRequest(ctx)
			if err != nil {
				subscriber.OnError(fmt.Errorf("rxgo: build request: %w", err))
				return
			}

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == nil {
					subscriber.OnError(err)
				}
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				subscriber.OnError(&HTTPStatusError{
					Method:     req.Method,
					URL:        req.URL.String(),
					StatusCode: resp.StatusCode,
					Status:     resp.Status,
				})
				return
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				if ctx.Err() == nil {
					subscriber.OnError(fmt.Errorf("rxgo: read body: %w", err))
				}
				return
			}

			subscriber.OnNext(Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body})
			subscriber.OnComplete()
		}()

		return Teardown(cancel)
	})
}

// Get 对url发起GET请求
func Get(client *http.Client, url string) Observable[Response] {
	return FromHTTP(client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// GetJSON 对url发起GET请求并把响应体解码为T
func GetJSON[T any](client *http.Client, url string) Observable[T] {
	return Pipe1(Get(client, url), Map(func(resp Response) (T, error) {
		var value T
		if err := json.Unmarshal(resp.Body, &value); err != nil {
			return value, fmt.Errorf("rxgo: decode %s: %w", url, err)
		}
		return value, nil
	}))
}
