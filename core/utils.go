package core

import (
	"fmt"
	"reflect"

	"github.com/encodeous/ddsroute/state"
)

func moduleName(m state.NyModule) string {
	return reflect.TypeOf(m).String()
}

// Get returns the running module of type T, panicking when Setup never registered it
func Get[T state.NyModule](s *state.State) T {
	name := reflect.TypeFor[T]().String()
	m, ok := s.Modules[name].(T)
	if !ok {
		panic(fmt.Sprintf("module %s is not running", name))
	}
	return m
}
