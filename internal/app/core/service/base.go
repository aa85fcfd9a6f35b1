package service

// Base carries the common ambient collaborators every engine service wires:
// a Descriptor for self-description, a RetryPolicy for transient failures,
// and ObservationHooks for metrics. Services embed a *Base and override any
// of these instead of repeating the plumbing.
type Base struct {
	descriptor Descriptor
	retry      RetryPolicy
	hooks      ObservationHooks
}

// NewBase constructs a Base with the library defaults. name/domain seed the
// Descriptor; callers typically follow with WithDescriptor/WithRetryPolicy/
// WithObservationHooks to specialize it.
func NewBase(name, domain string) *Base {
	return &Base{
		descriptor: Descriptor{Name: name, Domain: domain, Layer: LayerEngine},
		retry:      DefaultRetryPolicy,
		hooks:      NoopObservationHooks,
	}
}

// Descriptor returns the service's current descriptor.
func (b *Base) Descriptor() Descriptor {
	if b == nil {
		return Descriptor{}
	}
	return b.descriptor
}

// WithDescriptor replaces the descriptor, typically to append capabilities.
func (b *Base) WithDescriptor(d Descriptor) *Base {
	if b == nil {
		return nil
	}
	b.descriptor = d
	return b
}

// RetryPolicy returns the policy used for retryable operations.
func (b *Base) RetryPolicy() RetryPolicy {
	if b == nil {
		return DefaultRetryPolicy
	}
	return b.retry
}

// WithRetryPolicy overrides the retry policy.
func (b *Base) WithRetryPolicy(p RetryPolicy) *Base {
	if b == nil {
		return nil
	}
	b.retry = p
	return b
}

// ObservationHooks returns the hooks used to instrument operations.
func (b *Base) ObservationHooks() ObservationHooks {
	if b == nil {
		return NoopObservationHooks
	}
	return b.hooks
}

// WithObservationHooks overrides the observation hooks.
func (b *Base) WithObservationHooks(h ObservationHooks) *Base {
	if b == nil {
		return nil
	}
	b.hooks = h
	return b
}
