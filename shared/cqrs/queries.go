package cqrs

// ---------- User queries ----------

// GetUserQuery fetches a single user by ID.
type GetUserQuery struct {
	UserID int64
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account, scoped to the requesting user.
type GetAccountQuery struct {
	AccountID        int64
	RequestingUserID int64
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID int64
}
