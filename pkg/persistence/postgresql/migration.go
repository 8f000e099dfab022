package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				graph JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_trigger_type ON automations(trigger_type);
			CREATE INDEX idx_automations_status ON automations(status);

			CREATE TABLE automation_executions (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id),
				contact_id VARCHAR(255),
				current_node_id VARCHAR(255),
				context JSONB DEFAULT '{}',
				status VARCHAR(50) NOT NULL,
				wake_up_time TIMESTAMP WITH TIME ZONE,
				last_error TEXT,
				unique_event_id VARCHAR(512),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX idx_executions_unique_event
				ON automation_executions(unique_event_id)
				WHERE unique_event_id IS NOT NULL AND unique_event_id <> '';
			CREATE INDEX idx_executions_status ON automation_executions(status);
			CREATE INDEX idx_executions_wake_up
				ON automation_executions(wake_up_time)
				WHERE status = 'paused';
			CREATE INDEX idx_executions_contact ON automation_executions(contact_id);

			CREATE TABLE automation_logs (
				execution_id UUID NOT NULL REFERENCES automation_executions(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				action_type VARCHAR(100),
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				metadata JSONB,
				PRIMARY KEY (execution_id, node_id)
			);

			-- The idempotency fence: at most one success row per
			-- (execution, node) pair.
			CREATE UNIQUE INDEX idx_logs_single_success
				ON automation_logs(execution_id, node_id)
				WHERE status = 'success';
		`,
		2: `
			CREATE TABLE funnels (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				conversion_goal_event VARCHAR(255),
				settings JSONB DEFAULT '{}'
			);

			CREATE UNIQUE INDEX idx_funnels_automation ON funnels(automation_id);

			CREATE TABLE funnel_steps (
				id UUID PRIMARY KEY,
				funnel_id UUID NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				step_type VARCHAR(100),
				step_order INT NOT NULL DEFAULT 0,
				template_id VARCHAR(255),
				metrics JSONB NOT NULL DEFAULT '{"entered":0,"completed":0,"converted":0,"revenue":0}',
				UNIQUE (funnel_id, node_id)
			);

			CREATE TABLE funnel_journeys (
				id UUID PRIMARY KEY,
				funnel_id UUID NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				current_step_id UUID,
				status VARCHAR(50) NOT NULL,
				revenue_generated NUMERIC(12,2) NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (funnel_id, contact_id)
			);

			CREATE INDEX idx_journeys_contact ON funnel_journeys(contact_id);

			CREATE TABLE funnel_conversions (
				id UUID PRIMARY KEY,
				funnel_id UUID NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				transaction_id VARCHAR(255),
				amount NUMERIC(12,2) NOT NULL DEFAULT 0,
				attributed_step_id UUID,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
		3: `
			CREATE TABLE email_templates (
				id UUID PRIMARY KEY,
				subject TEXT NOT NULL DEFAULT '',
				html_content TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE tags (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE
			);

			CREATE TABLE contact_tags (
				contact_id VARCHAR(255) NOT NULL,
				tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (contact_id, tag_id)
			);
		`,
	}
}
