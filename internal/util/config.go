package util

import "github.com/spf13/viper"

// AssumeYes returns whether confirmation prompts should be answered "yes"
// without asking. Set with --yes or CONTENTFUL_MIGRATION_YES.
func AssumeYes() bool {
	return viper.GetBool("yes")
}
