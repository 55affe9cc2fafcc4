/*
Package resilience provides the circuit breaker that guards outbound calls
made by the extension host: dialing the main process and delivering URIs to
webhook handlers.

# States

  - Closed: calls pass through and failures are counted
  - Open: calls fail with ErrCircuitOpen until the cooldown elapses
  - Half-Open: a limited number of probe calls decide whether to close again

	Closed --[Trip]--> Open --[Cooldown]--> Half-Open --[Probes ok]--> Closed
	                                            |
	                                        [failure]
	                                            v
	                                          Open

# Usage

	breaker := resilience.New("main-dial", resilience.Settings{
		Cooldown: 5 * time.Second,
		Trip:     resilience.ConsecutiveFailures(3),
	})
	err := breaker.Do(ctx, func(ctx context.Context) error {
		return dial(ctx)
	})

Context cancellation of the caller is not counted as a failure.
*/
package resilience
