package bigquery

var (
	projectID = "budgetbook-dev"
	datasetID = "finance"
)

const (
	accountsTable     = "accounts"
	categoriesTable   = "categories"
	goalsTable        = "goals"
	transactionsTable = "transactions"
	uploadsTable      = "uploads"
	importRunsTable   = "import_runs"

	dateFormat = "2006-01-02"
)

// Configure points the package at a project and dataset. It must be called
// before any query helper; the defaults only suit local development.
func Configure(project, dataset string) {
	if project != "" {
		projectID = project
	}
	if dataset != "" {
		datasetID = dataset
	}
}
