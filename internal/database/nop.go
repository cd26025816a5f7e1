package database

import "context"

// Nop satisfies AudienceRepository and UserActionLogger without storing
// anything. It is used when no MongoDB URI is configured.
type Nop struct{}

func (Nop) LogUserAction(int64, string, interface{}) error { return nil }

func (Nop) UpdateUser(context.Context, int64, string, string, string, string) error { return nil }

func (Nop) UpdateGroup(context.Context, int64, string, string) error { return nil }

func (Nop) ListUserIDs(context.Context) ([]int64, error) { return nil, nil }

func (Nop) ListGroupIDs(context.Context) ([]int64, error) { return nil, nil }
