package tui

import (
	"github.com/charmbracelet/huh"
)

func CreateStorageForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("backend").
				Title("Backend").
				Description("Object storage implementation").
				Options(
					huh.NewOption("S3-compatible", "s3"),
					huh.NewOption("In-memory (tests and dry runs)", "memory"),
				).
				Value(&values.StorageBackend),

			huh.NewInput().
				Key("endpoint").
				Title("Endpoint").
				Description("Host or URL of the S3 service").
				Value(&values.StorageEndpoint).
				Placeholder("https://os.zhdk.cloud.switch.ch").
				Validate(ValidateEndpoint),

			huh.NewInput().
				Key("region").
				Title("Region").
				Description("Leave empty unless the service requires one").
				Value(&values.StorageRegion).
				Placeholder("us-east-1"),

			huh.NewConfirm().
				Key("secure").
				Title("Use TLS").
				Description("Ignored when the endpoint is a URL").
				Value(&values.StorageSecure),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("access_key").
				Title("Access Key").
				Value(&values.StorageAccessKey),

			huh.NewInput().
				Key("secret_key").
				Title("Secret Key").
				Value(&values.StorageSecretKey).
				EchoMode(huh.EchoModePassword),
		),
	).WithTheme(formTheme(false))
}

func CreateConcurrencyForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("workers").
				Title("Workers").
				Description("Archives processed in parallel (1-64)").
				Value(&values.Workers).
				Placeholder("4").
				Validate(ValidateIntRange(1, 64)),

			huh.NewInput().
				Key("timeout").
				Title("Operation Timeout").
				Description("Timeout of a single storage operation (e.g., 30s, 5m)").
				Value(&values.Timeout).
				Placeholder("5m").
				Validate(ValidateDuration),
		),
	).WithTheme(formTheme(false))
}

func CreateCacheForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("enabled").
				Title("Enable Cache").
				Description("Reuse the statistics of archives whose ETag did not change").
				Value(&values.CacheEnabled),

			huh.NewInput().
				Key("ttl").
				Title("Cache TTL").
				Description("How long to keep computed statistics (e.g., 24h, 168h)").
				Value(&values.CacheTTL).
				Placeholder("168h").
				Validate(ValidateDuration),

			huh.NewInput().
				Key("directory").
				Title("Cache Directory").
				Description("Directory for cache storage").
				Value(&values.CacheDirectory).
				Placeholder("~/.impresso/cache"),
		),
	).WithTheme(formTheme(false))
}

func CreateGitForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("mirror_url").
				Title("Mirror URL").
				Description("Repository receiving published manifests").
				Value(&values.GitMirrorURL).
				Placeholder("https://github.com/impresso/impresso-data-release.git").
				Validate(ValidateMirrorURL),

			huh.NewInput().
				Key("branch").
				Title("Branch").
				Description("Leave empty to follow the remote default branch").
				Value(&values.GitBranch),

			huh.NewInput().
				Key("token").
				Title("Token").
				Description("Access token used for HTTPS pushes").
				Value(&values.GitToken).
				EchoMode(huh.EchoModePassword),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("author_name").
				Title("Author Name").
				Value(&values.GitAuthorName).
				Validate(ValidateRequired),

			huh.NewInput().
				Key("author_email").
				Title("Author Email").
				Value(&values.GitAuthorEmail).
				Validate(ValidateEmail),
		),
	).WithTheme(formTheme(false))
}

func CreateLoggingForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("level").
				Title("Log Level").
				Description("Minimum log level to display").
				Options(
					huh.NewOption("Trace", "trace"),
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&values.LogLevel),

			huh.NewSelect[string]().
				Key("format").
				Title("Log Format").
				Description("Output format for logs").
				Options(
					huh.NewOption("Pretty (human-readable)", "pretty"),
					huh.NewOption("JSON (structured)", "json"),
				).
				Value(&values.LogFormat),
		),
	).WithTheme(formTheme(false))
}

func CreateRetryForm(values *ConfigValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("max_retries").
				Title("Max Retries").
				Description("Retries of a failed storage or git operation (0 disables)").
				Value(&values.RetryMaxRetries).
				Placeholder("3").
				Validate(ValidateNonNegativeInt),

			huh.NewInput().
				Key("initial_interval").
				Title("Initial Interval").
				Description("Wait before the first retry").
				Value(&values.RetryInitialInterval).
				Placeholder("1s").
				Validate(ValidateDuration),

			huh.NewInput().
				Key("max_interval").
				Title("Max Interval").
				Description("Upper bound of the wait between retries").
				Value(&values.RetryMaxInterval).
				Placeholder("30s").
				Validate(ValidateDuration),
		),
	).WithTheme(formTheme(false))
}

func GetFormForCategory(category string, values *ConfigValues) *huh.Form {
	switch category {
	case "storage":
		return CreateStorageForm(values)
	case "concurrency":
		return CreateConcurrencyForm(values)
	case "cache":
		return CreateCacheForm(values)
	case "git":
		return CreateGitForm(values)
	case "logging":
		return CreateLoggingForm(values)
	case "retry":
		return CreateRetryForm(values)
	default:
		return nil
	}
}
