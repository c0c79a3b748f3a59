package postgresql

// Entities are stored as JSONB documents; the extracted columns only serve
// lookups and ordering.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE campaigns (
				id VARCHAR(255) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_campaigns_title ON campaigns(title);

			CREATE TABLE scenarios (
				id VARCHAR(255) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE campaign_executions (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				start_time TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX idx_campaign_executions_campaign_id ON campaign_executions(campaign_id);
			CREATE INDEX idx_campaign_executions_start_time ON campaign_executions(start_time);
		`,
		2: `
			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				next_due_at TIMESTAMP WITH TIME ZONE,
				document JSONB NOT NULL
			);

			CREATE INDEX idx_schedules_campaign_id ON schedules(campaign_id);
		`,
	}
}
