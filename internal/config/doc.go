/*
Package config provides YAML-backed configuration for the tierstore cache
engine with defaults, environment overrides, and validation.

Configuration is resolved in three layers, later layers winning:

 1. NewDefault() built-in defaults
 2. LoadFromFile() from a YAML file
 3. LoadFromEnv() from TIERSTORE_* environment variables

Call Validate() after resolution; a configuration that passes validation
is safe to hand to the cache constructors unchanged.
*/
package config
