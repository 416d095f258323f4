package observability

// Metric name prefixes
const (
	MetricPrefix = "cardroom"
)

// Metric names
const (
	// Ledger metrics
	LedgerTransactionsTotal = MetricPrefix + ".ledger.transactions_total"

	// Table metrics
	TableTransitionsTotal = MetricPrefix + ".tables.transitions_total"

	// Router metrics
	RouterAssignmentsTotal = MetricPrefix + ".router.assignments_total"
	RouterPassDuration     = MetricPrefix + ".router.pass_duration"

	// Enforcer metrics
	EnforcerActionsTotal = MetricPrefix + ".enforcer.actions_total"

	// Invite metrics
	InviteConsumptionsTotal = MetricPrefix + ".invites.consumptions_total"

	// Dispatcher metrics
	DispatcherQueueDepth = MetricPrefix + ".dispatcher.queue_depth"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelKind      = "kind"
	LabelCurrency  = "currency"
	LabelStatus    = "status"
	LabelOutcome   = "outcome"
	LabelAction    = "action"
	LabelEventType = "event_type"
	LabelResult    = "result"
)

// Router assignment outcomes
const (
	RouteExistingTable = "existing_table"
	RouteNewTable      = "new_table"
	RouteCancelled     = "cancelled"
	RouteDeferred      = "deferred"
)

// Invite consumption results
const (
	InviteConsumed        = "consumed"
	InviteAlreadyConsumed = "already_consumed"
)
