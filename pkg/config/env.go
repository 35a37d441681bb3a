package config

const (
	EnvPrefix = "STOCKROUTE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "STOCKROUTE_APP_ENV"
	EnvPort           = "STOCKROUTE_APP_PORT"
	EnvDBDSN          = "STOCKROUTE_DB_DSN"
	EnvDBHost         = "STOCKROUTE_DB_HOST"
	EnvDBUser         = "STOCKROUTE_DB_USER"
	EnvDBName         = "STOCKROUTE_DB_NAME"
	EnvRedisURL       = "STOCKROUTE_REDIS_URL"
	EnvJWTSecret      = "STOCKROUTE_JWT_SECRET"
	EnvJWTIssuer      = "STOCKROUTE_JWT_ISSUER"
	EnvCourierEmail   = "STOCKROUTE_COURIER_EMAIL"
	EnvCourierPass    = "STOCKROUTE_COURIER_PASSWORD"
	EnvSplitOrders    = "STOCKROUTE_ALLOCATION_SPLIT_ORDERS"
	EnvConvenienceFee = "STOCKROUTE_CHECKOUT_CONVENIENCE_FEE"
	EnvGiftWrapFee    = "STOCKROUTE_CHECKOUT_GIFT_WRAP_FEE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
