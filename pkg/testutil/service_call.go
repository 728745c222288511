package testutil

import "time"

// ServiceCall records a service call for testing/verification
type ServiceCall struct {
	Timestamp   time.Time
	Domain      string
	Service     string
	ServiceData map[string]interface{}
}

// PublishedState records a REST entity publication for testing/verification
type PublishedState struct {
	Timestamp  time.Time
	EntityID   string
	State      string
	Attributes map[string]interface{}
}

// FilterServiceCalls filters service calls by domain and service
func FilterServiceCalls(calls []ServiceCall, domain, service string) []ServiceCall {
	var filtered []ServiceCall
	for _, call := range calls {
		if call.Domain == domain && call.Service == service {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FilterPublishedStates filters publications by entity ID
func FilterPublishedStates(published []PublishedState, entityID string) []PublishedState {
	var filtered []PublishedState
	for _, p := range published {
		if p.EntityID == entityID {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// FindServiceCallWithData finds a service call with matching data key/value
func FindServiceCallWithData(calls []ServiceCall, domain, service, dataKey string, dataValue interface{}) *ServiceCall {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Domain == domain && call.Service == service {
			if val, ok := call.ServiceData[dataKey]; ok && val == dataValue {
				return &call
			}
		}
	}
	return nil
}
