package enum

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

// ── Screens (orders.screen_name, no DB constraint) ──

const (
	ScreenProduct   = "ProductScreen"
	ScreenSplitBill = "SplitBillScreen"
)

// ── Preparation categories (configurable labels, pos_configs.preparation_categories) ──

const (
	StationGrill    = "GRILL"
	StationBeverage = "BEVERAGE"
	StationRice     = "RICE"
	StationDessert  = "DESSERT"
)
