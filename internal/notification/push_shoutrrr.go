package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

// ShoutrrrProvider sends via nicholas-fedor/shoutrrr.
// One sender serves every configured URL.
type ShoutrrrProvider struct {
	name    string
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
}

func NewShoutrrrProvider(name string, enabled bool, urls []string, timeout time.Duration) *ShoutrrrProvider {
	sp := &ShoutrrrProvider{
		name:    strings.TrimSpace(name),
		enabled: enabled,
		urls:    slices.Clone(urls),
		timeout: timeout,
	}
	if sp.name == "" {
		sp.name = "shoutrrr"
	}
	return sp
}

func (s *ShoutrrrProvider) GetName() string { return s.name }
func (s *ShoutrrrProvider) IsEnabled() bool { return s.enabled }

// ValidateConfig builds the sender, which also validates every URL
func (s *ShoutrrrProvider) ValidateConfig() error {
	if !s.enabled {
		return nil
	}
	if len(s.urls) == 0 {
		return errors.Newf("at least one push URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return sanitizedError(err, "create_sender")
	}
	s.sender = sender
	if s.timeout > 0 {
		s.sender.Timeout = s.timeout
	}
	s.sender.SetLogger(log.New(io.Discard, "", 0))
	return nil
}

func (s *ShoutrrrProvider) Send(ctx context.Context, t *Toast) error {
	if s.sender == nil {
		return errors.Newf("shoutrrr sender not initialized").
			Component("notification").
			Category(errors.CategoryState).
			Build()
	}
	_ = ctx // router handles its own timeouts

	params := stypes.Params{}
	params.SetTitle("Line Walk " + strings.ToUpper(string(t.Type)))
	for _, e := range s.sender.Send(t.Message, &params) {
		if e != nil {
			return sanitizedError(e, "send")
		}
	}
	return nil
}

// sanitizedError strips tokens and credentials that shoutrrr echoes back in URLs
func sanitizedError(err error, op string) error {
	return errors.Newf("push %s failed: %s", op, logger.RedactSensitiveData(err.Error())).
		Component("notification").
		Category(errors.CategoryIntegration).
		Context("operation", op).
		Build()
}
