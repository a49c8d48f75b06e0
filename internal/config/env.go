// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// envAliases maps each env-profile field to its environment variables in
// precedence order. TRITON_* wins over the legacy SDC_* names.
var envAliases = map[string][]string{
	"url":      {"TRITON_URL", "SDC_URL"},
	"account":  {"TRITON_ACCOUNT", "SDC_ACCOUNT"},
	"user":     {"TRITON_USER", "SDC_USER"},
	"keyId":    {"TRITON_KEY_ID", "SDC_KEY_ID"},
	"insecure": {"TRITON_TLS_INSECURE", "SDC_TESTING"},
	"actAs":    {"TRITON_ACT_AS"},
}

// EnvProfile synthesizes the reserved "env" profile from environment
// variables. It never touches the filesystem. The getenv parameter exists
// for tests; production callers pass os.Getenv.
func EnvProfile(getenv func(string) string) (*Profile, error) {
	v := viper.New()
	for field, names := range envAliases {
		for _, name := range names {
			if val := getenv(name); val != "" {
				v.SetDefault(field, val)
				break
			}
		}
	}

	p := &Profile{
		Name:         EnvProfileName,
		URL:          v.GetString("url"),
		Account:      v.GetString("account"),
		User:         v.GetString("user"),
		ActAsAccount: v.GetString("actAs"),
		KeyID:        v.GetString("keyId"),
		Insecure:     truthyEnv(v.GetString("insecure")),
	}

	if p.URL == "" || p.Account == "" || p.KeyID == "" {
		return nil, clierr.Configf(
			"could not synthesize the %q profile: TRITON_URL, TRITON_ACCOUNT and "+
				"TRITON_KEY_ID (or their SDC_* equivalents) must all be set", EnvProfileName)
	}
	if err := ValidateProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// truthyEnv interprets the historic boolean env conventions: SDC_TESTING
// accepted "1" and "true"; anything else, including empty, is false.
func truthyEnv(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}
