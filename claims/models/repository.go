package models

import "context"

// Repository contains all of the methods needed to interact with the data
// represented in the models package.
type Repository interface {
	GetClaimByID(ctx context.Context, claimID int64) (*Claim, error)
	SearchClaims(ctx context.Context, filters SearchFilters) ([]*Claim, error)

	// GetClaimFields reads the current stored values of the targeted columns,
	// used to diff an incoming partial update.
	GetClaimFields(ctx context.Context, claimID int64, fields []string) (map[string]interface{}, error)
	UpdateClaimFields(ctx context.Context, claimID int64, fields map[string]interface{}) error

	CreateChangeLogEntries(ctx context.Context, entries ...ChangeLogEntry) error
	GetChangeLogByClaimID(ctx context.Context, claimID int64) ([]*ChangeLogEntry, error)
	GetChangeLog(ctx context.Context, filters HistoryFilters) ([]*ChangeLogEntry, error)

	GetUserByID(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, user User) (int64, error)
	UpdateUser(ctx context.Context, userID int64, fields map[string]interface{}) error
}
