package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"

	"drg/client/common"
)

// DialEvents open websocket stream of application events
func (c *Client) DialEvents(ctx context.Context, wsURL, app string) (*websocket.Conn, error) {
	u := strings.TrimRight(wsURL, "/") + "/" + url.PathEscape(app)
	log.Debugf("connect to %s", u)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	headers := http.Header{}
	if c.context.Credential != nil {
		headers.Set("Authorization", c.context.Credential.Authorization())
	}

	conn, resp, err := dialer.DialContext(ctx, u, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, common.NewHTTPError(resp.StatusCode, resp.Body)
		}
		return nil, errors.Wrapf(err, "fail to connect %s", u)
	}

	return conn, nil
}
