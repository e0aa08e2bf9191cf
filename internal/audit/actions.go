package audit

// Action names are a closed, stable vocabulary so stored entries stay
// consistent across call sites. They carry no behavior.
const (
	// Authentication.
	ActionLogin          = "auth.login"
	ActionLoginFailed    = "auth.login_failed"
	ActionLogout         = "auth.logout"
	ActionPasswordReset  = "auth.password_reset"
	ActionPasswordChange = "auth.password_change"

	// User management.
	ActionUserCreate     = "user.create"
	ActionUserUpdate     = "user.update"
	ActionUserDelete     = "user.delete"
	ActionUserRoleChange = "user.role_change"

	// Product lifecycle.
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"

	// Order lifecycle.
	ActionOrderCreate       = "order.create"
	ActionOrderCancel       = "order.cancel"
	ActionOrderStatusChange = "order.status_change"
	ActionOrderRefund       = "order.refund"

	// Payments.
	ActionPaymentInitiate = "payment.initiate"
	ActionPaymentCapture  = "payment.capture"
	ActionPaymentFail     = "payment.fail"

	// Moderation.
	ActionModerationFlag   = "moderation.flag"
	ActionModerationRemove = "moderation.remove"
	ActionModerationBan    = "moderation.ban"

	// Forum.
	ActionForumPostCreate = "forum.post_create"
	ActionForumPostDelete = "forum.post_delete"

	// Reviews.
	ActionReviewCreate = "review.create"
	ActionReviewDelete = "review.delete"

	// Admin.
	ActionAdminSettingsChange = "admin.settings_change"
	ActionAdminImpersonate    = "admin.impersonate"
	ActionAdminRateLimitReset = "admin.rate_limit_reset"
	ActionAdminAuditSweep     = "admin.audit_retention_sweep"

	// Security events.
	ActionSecurityRateLimited  = "security.rate_limited"
	ActionSecurityAccessDenied = "security.access_denied"
)
