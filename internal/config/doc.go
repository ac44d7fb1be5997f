// SPDX-License-Identifier: MPL-2.0

// Package config handles launcher configuration using Viper with CUE as the file format.
//
// Configuration is read from bootlace.cue in the launcher's base directory (or
// from an explicit --config path), validated against an embedded CUE schema
// (config_schema.cue), and overridden by BOOTLACE_* environment variables.
// A .env file in the base directory is loaded into the process environment
// first, without replacing variables that are already set.
package config
