package detect

// DefaultAccessors are member accesses that read identity or persisted
// state from a bound record. A stubbed or transient object cannot honor
// them faithfully, so any hit pins the site to persisted construction.
var DefaultAccessors = []string{
	"id",
	"persisted?",
	"reload",
	"created_at",
	"updated_at",
}

// DefaultAssociationMutators are methods that persist records through an
// association on the bound record.
var DefaultAssociationMutators = []string{
	"create",
	"create!",
	"push",
}

// DefaultQueryMethods are storage lookups and filters. A bound record
// appearing in their argument lists must exist in storage to be found.
var DefaultQueryMethods = []string{
	"where",
	"find_by",
	"find_by!",
	"find",
	"find_each",
	"exists?",
	"pluck",
}

// DefaultConsumerSuffixes name the class families that hand records to
// external machinery: background jobs, service objects, mailers. Records
// crossing that boundary are conventionally expected to be persisted.
var DefaultConsumerSuffixes = []string{
	"Job",
	"Worker",
	"Service",
	"Mailer",
}
