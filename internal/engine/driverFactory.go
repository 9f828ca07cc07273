package engine

import (
	"fmt"
	"sort"
	"sync"

	config "partnerbundle/internal/config"
	log "partnerbundle/internal/log"
)

var (
	muDrivers sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Drivers must call this function in their init
func RegisterEngineDriver(name string, d Driver) {
	muDrivers.Lock()
	defer muDrivers.Unlock()

	if d == nil {
		panic("Driver is nil")
	}
	if _, exist := drivers[name]; exist {
		panic("Driver already registered")
	}
	drivers[name] = d
}

func LoadEngineDriver(name string, c *config.Config, l log.Logger) (Engine, error) {
	muDrivers.RLock()
	defer muDrivers.RUnlock()

	driver, exist := drivers[name]
	if !exist {
		return nil, fmt.Errorf("Unknown engine driver '%s', not included in the program", name)
	}
	e, err := driver.New(c, l)
	if err != nil {
		return nil, fmt.Errorf("Unable to initialize engine driver '%s': %s", name, err.Error())
	}
	return e, nil
}

func ListEngineDrivers() []string {
	muDrivers.RLock()
	defer muDrivers.RUnlock()

	result := []string{}
	for k := range drivers {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
