package monitor

import (
	"context"
	"time"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
)

type Repo interface {
	Create(ctx context.Context, m *Monitor) error
	GetByID(ctx context.Context, id int64) (*Monitor, error)
	List(ctx context.Context, includeDeleted bool) ([]*Monitor, error)
	ListCertificateEnabled(ctx context.Context) ([]*Monitor, error)
	ListMissingSSLResults(ctx context.Context, since time.Time) ([]*Monitor, error)
	FetchDue(ctx context.Context, limit int) ([]*Monitor, error)
	UpdateStatus(ctx context.Context, id int64, uptime check.UptimeStatus, ssl check.SSLStatus, checkedAt time.Time) error
	Update(ctx context.Context, m *Monitor) error
	SoftDelete(ctx context.Context, id int64) error
}
