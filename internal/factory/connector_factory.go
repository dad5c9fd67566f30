package factory

import (
	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
	"fmt"
	"log"
)

// ConnectorFactory defines a function that builds a connector for one sensor.
type ConnectorFactory func(sensor config.SensorConfig, collector config.CollectorConfig) (model.Connector, error)

// registry holds the mapping of sensor types to their factory functions.
var registry = make(map[string]ConnectorFactory)

// RegisterConnector registers a new sensor type with its factory function.
// Connector packages call this from init, so adding a sensor family never
// touches calling code.
func RegisterConnector(name string, factory ConnectorFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("connector type '%s' already registered", name))
	}
	registry[name] = factory
}

// Create builds one connector per configured sensor. An unknown type string
// is a configuration error, reported with the set of registered types.
func Create(cfg *config.Config) ([]model.Connector, error) {
	connectors := make([]model.Connector, 0, len(cfg.Sensors))

	for _, sensor := range cfg.Sensors {
		factory, ok := registry[sensor.Type]
		if !ok {
			return nil, fmt.Errorf("unknown connector type '%s' for sensor '%s' (registered types: %v)",
				sensor.Type, sensor.Name, registeredTypes())
		}

		conn, err := factory(sensor, cfg.Collector)
		if err != nil {
			return nil, fmt.Errorf("error creating connector for sensor '%s': %w", sensor.Name, err)
		}

		log.Printf("Created '%s' connector for sensor '%s'", sensor.Type, sensor.Name)
		connectors = append(connectors, conn)
	}

	return connectors, nil
}

func registeredTypes() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	return types
}
