// Package config loads typed configuration from the process environment.
//
// Structs describe their settings with caarlos0/env tags. Load parses the
// environment once per struct type and hands out copies of the cached value
// afterwards; the optional .env file in the working directory is read with
// godotenv before the first parse.
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// LoadEnv reads additional .env files and Reset drops the cache, which is
// mostly useful in tests.
package config
