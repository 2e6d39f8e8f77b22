package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "WEBINARS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WEBINARS_DB_DSN"
	EnvDBHost = "WEBINARS_DB_HOST"
	EnvDBUser = "WEBINARS_DB_USER"
	EnvDBName = "WEBINARS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
