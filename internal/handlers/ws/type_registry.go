package ws

import (
	"reflect"
)

var typeRegistry = map[string]reflect.Type{}

func init() {
	RegisterType(&MessagePing{})
	RegisterType(&MessagePong{})
	RegisterType(&MessageSubscribe{})
	RegisterType(&MessageDelivered{})
	RegisterType(&MessageRead{})
}

func RegisterType(msg Message) {
	typeRegistry[msg.GetType()] = reflect.TypeOf(msg).Elem()
}

// GetTypeRegistry returns the type registry for testing
func GetTypeRegistry() map[string]reflect.Type {
	return typeRegistry
}
