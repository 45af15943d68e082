package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"

	"github.com/NordCoder/Sitewatch/internal/domain/notification"
)

var (
	_ notification.Channel = (*EmailChannel)(nil)
	_ notification.Channel = (*ShoutrrrChannel)(nil)
)

type EmailChannel struct {
	Mailer *Mailer
	To     []string
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, subject, body string) error {
	return c.Mailer.Send(ctx, c.To, subject, body)
}

// ShoutrrrChannel delivers to one chat or webhook service addressed by a
// shoutrrr URL (slack://, discord://, telegram://, ...). Each URL is its
// own channel so a failing service does not cause resends to the others.
type ShoutrrrChannel struct {
	name string
	url  string
	send func(url string, message string) error
}

func NewShoutrrrChannels(urls []string) []*ShoutrrrChannel {
	out := make([]*ShoutrrrChannel, 0, len(urls))
	for i, u := range urls {
		scheme := u
		if j := strings.Index(u, "://"); j > 0 {
			scheme = u[:j]
		}
		// the URL carries credentials, so the name only exposes its scheme
		out = append(out, &ShoutrrrChannel{
			name: fmt.Sprintf("shoutrrr:%s#%d", scheme, i),
			url:  u,
			send: func(url, msg string) error { return shoutrrr.Send(url, msg) },
		})
	}
	return out
}

func (c *ShoutrrrChannel) Name() string { return c.name }

func (c *ShoutrrrChannel) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.send(c.url, subject+"\n\n"+body); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}
