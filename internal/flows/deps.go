package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Session       SessionDeps
	Validate      ValidateDeps
	Login         LoginDeps
	Account       AccountDeps
	Refresh       RefreshDeps
	Logout        LogoutDeps
	PasswordReset PasswordResetDeps
}
