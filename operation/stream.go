package operation

import (
	"context"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"

	"drg/client"
	"drg/outcome"
)

// Stream write application events to out, one per line, until count events received,
// the stream is closed or ctx is done. count 0 means unlimited.
func (o *Operations) Stream(ctx context.Context, app string, count int, out io.Writer) (int, error) {
	endpoints, err := client.Discover(ctx, o.context.CloudURL)
	if err != nil {
		return 0, err
	}

	if endpoints.WebsocketIntegration == nil || endpoints.WebsocketIntegration.URL == "" {
		return 0, outcome.ConfigIssue("no websocket integration endpoint announced by %s", o.context.CloudURL)
	}

	conn, err := o.client.DialEvents(ctx, endpoints.WebsocketIntegration.URL, app)
	if err != nil {
		if outcome.IsNotFound(err) {
			return 0, App(app).notFound()
		}
		return 0, err
	}
	defer conn.Close()
	defer closeOnDone(ctx, conn)()

	received := 0
	for count == 0 || received < count {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				log.Debugf("stream closed after %d events", received)
				return received, nil
			}
			return received, errors.Wrap(err, "stream failed")
		}

		received++
		fmt.Fprintln(out, string(msg))
	}

	return received, nil
}

// closeOnDone close c when ctx is done. The returned stop func ends the watch and waits for it.
func closeOnDone(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
