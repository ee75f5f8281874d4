package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type entry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache         sync.Map // type name -> *entry
	defaultDotEnv sync.Once
)

// Load parses the environment into v. Each struct type is parsed once;
// later calls copy the cached value. A failed parse is cached too, call
// Reset before retrying.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultDotEnv.Do(func() {
		// A missing .env file is fine.
		_ = godotenv.Load()
	})

	raw, _ := cache.LoadOrStore(typeName[T](), &entry{})
	e := raw.(*entry)
	e.once.Do(func() {
		var cfg T
		if err := env.Parse(&cfg); err != nil {
			e.err = errors.Join(ErrParsingConfig, err)
			return
		}
		e.value = cfg
	})
	if e.err != nil {
		return e.err
	}
	*v = e.value.(T)
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// LoadEnv reads the given .env files into the process environment without
// overriding variables that are already set.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnv, err)
	}
	return nil
}

// Reset drops every cached configuration.
func Reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
