package test

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	dbadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
)

// MockDBConnectionResolver is a testify mock of database.DBConnectionResolver.
type MockDBConnectionResolver struct {
	mock.Mock
}

// ResolveDBConnection mocks database.DBConnectionResolver.ResolveDBConnection.
func (m *MockDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (dbadapter.DBConnection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(dbadapter.DBConnection), args.Error(1)
}

type singleConnectionResolver struct {
	conn dbadapter.DBConnection
}

// NewSingleConnectionResolver returns a resolver that knows only conn, under
// its own name.
func NewSingleConnectionResolver(conn dbadapter.DBConnection) dbadapter.DBConnectionResolver {
	return &singleConnectionResolver{conn: conn}
}

func (r *singleConnectionResolver) ResolveDBConnection(_ context.Context, name string) (dbadapter.DBConnection, error) {
	if name != r.conn.Name() {
		return nil, fmt.Errorf("database connection '%s' is not configured", name)
	}
	return r.conn, nil
}

var (
	_ dbadapter.DBConnectionResolver = (*MockDBConnectionResolver)(nil)
	_ dbadapter.DBConnectionResolver = (*singleConnectionResolver)(nil)
)
