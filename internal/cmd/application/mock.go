package application

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ervinkurbegovic/jamfsync"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
// Example Usage:
//
//	mock := &application.Mock{
//	    ClientFunc: func(ctx context.Context, opts ...jamfsync.Option) (jamfsync.Client, error) {
//	        return jamfsync.New(append(testOptions, opts...)...)
//	    },
//	    OutWriter: &buf,
//	}
//	cmd := synccmd.NewCommand(mock)
type Mock struct {
	ClientFunc       func(ctx context.Context, opts ...jamfsync.Option) (jamfsync.Client, error)
	MappingFunc      func(ctx context.Context) (mapping.Store, error)
	MirrorFunc       func(ctx context.Context) (jamfsync.Mirror, error)
	LockerFunc       func(ctx context.Context) (lock.Locker, error)
	ConfirmerFunc    func(autoApprove bool) session.Confirmer
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	Interval         time.Duration
	OutWriter        io.Writer
}

var _ Application = (*Mock)(nil)

// Client returns a client using the mock function or nil.
func (m *Mock) Client(ctx context.Context, opts ...jamfsync.Option) (jamfsync.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(ctx, opts...)
	}
	return nil, nil
}

// Mapping returns a store using the mock function or an empty memory store.
func (m *Mock) Mapping(ctx context.Context) (mapping.Store, error) {
	if m.MappingFunc != nil {
		return m.MappingFunc(ctx)
	}
	return mapping.NewMemory(), nil
}

// Mirror returns a mirror using the mock function or nil.
func (m *Mock) Mirror(ctx context.Context) (jamfsync.Mirror, error) {
	if m.MirrorFunc != nil {
		return m.MirrorFunc(ctx)
	}
	return nil, nil
}

// Locker returns a lock using the mock function or a process-local one.
func (m *Mock) Locker(ctx context.Context) (lock.Locker, error) {
	if m.LockerFunc != nil {
		return m.LockerFunc(ctx)
	}
	return lock.NewLocal("mock"), nil
}

// Confirmer returns the mock confirmer or auto-approval.
func (m *Mock) Confirmer(autoApprove bool) session.Confirmer {
	if m.ConfirmerFunc != nil {
		return m.ConfirmerFunc(autoApprove)
	}
	return session.AutoApprove
}

// SyncInterval returns Interval or one hour.
func (m *Mock) SyncInterval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return time.Hour
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Out returns OutWriter or stdout.
func (m *Mock) Out() io.Writer {
	if m.OutWriter != nil {
		return m.OutWriter
	}
	return os.Stdout
}

// Version returns a fixed test version.
func (m *Mock) Version() string { return "test" }

// Commit returns a fixed test commit.
func (m *Mock) Commit() string { return "none" }

// Date returns a fixed test date.
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns a fixed test builder.
func (m *Mock) BuiltBy() string { return "test" }
