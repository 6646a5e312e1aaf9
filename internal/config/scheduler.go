package config

import (
	"github.com/spf13/viper"
)

// SchedulerConfig holds configuration for the cron scheduler process.
type SchedulerConfig struct {
	LeaseServiceURL      string `mapstructure:"LEASE_SERVICE_URL"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	CronTimezone         string `mapstructure:"CRON_TIMEZONE"`
	InvoiceJobSchedule   string `mapstructure:"INVOICE_JOB_SCHEDULE"`
	OverdueJobSchedule   string `mapstructure:"OVERDUE_JOB_SCHEDULE"`
	LateFeeJobSchedule   string `mapstructure:"LATE_FEE_JOB_SCHEDULE"`
	PayoutJobSchedule    string `mapstructure:"PAYOUT_JOB_SCHEDULE"`
	RenewalJobSchedule   string `mapstructure:"RENEWAL_JOB_SCHEDULE"`
	ReconcileJobSchedule string `mapstructure:"RECONCILE_JOB_SCHEDULE"`
}

// LoadSchedulerConfig reads scheduler configuration from environment variables,
// providing defaults for cron schedules.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	viper.SetDefault("CRON_TIMEZONE", "Europe/Istanbul")
	viper.SetDefault("INVOICE_JOB_SCHEDULE", "0 3 * * *")   // At 03:00 every day.
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "15 3 * * *")  // At 03:15, after generation.
	viper.SetDefault("LATE_FEE_JOB_SCHEDULE", "30 3 * * *") // At 03:30, after overdue marking.
	viper.SetDefault("PAYOUT_JOB_SCHEDULE", "0 4 * * *")    // At 04:00.
	viper.SetDefault("RENEWAL_JOB_SCHEDULE", "30 4 * * *")  // At 04:30.
	viper.SetDefault("RECONCILE_JOB_SCHEDULE", "0 5 * * *") // At 05:00.
	viper.AutomaticEnv()

	_ = viper.BindEnv("LEASE_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("CRON_TIMEZONE")
	_ = viper.BindEnv("INVOICE_JOB_SCHEDULE")
	_ = viper.BindEnv("OVERDUE_JOB_SCHEDULE")
	_ = viper.BindEnv("LATE_FEE_JOB_SCHEDULE")
	_ = viper.BindEnv("PAYOUT_JOB_SCHEDULE")
	_ = viper.BindEnv("RENEWAL_JOB_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_JOB_SCHEDULE")

	var config SchedulerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := requireSet(map[string]string{
		"LEASE_SERVICE_URL": config.LeaseServiceURL,
		"INTERNAL_API_KEY":  config.InternalAPIKey,
	}); err != nil {
		return nil, err
	}
	if err := validateTimezone("CRON_TIMEZONE", config.CronTimezone); err != nil {
		return nil, err
	}

	return &config, nil
}
