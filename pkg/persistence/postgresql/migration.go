package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE runs (
				id UUID PRIMARY KEY,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'completed', 'failed', 'cancelled')),
				safe_mode BOOLEAN NOT NULL DEFAULT true,
				plan JSONB NOT NULL,
				log JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_created_at ON runs(created_at);

			CREATE TABLE snapshots (
				id UUID PRIMARY KEY,
				run_id UUID,
				step_id VARCHAR(255),
				kind VARCHAR(50) NOT NULL,
				target_path TEXT NOT NULL,
				checksum VARCHAR(128) NOT NULL,
				size_bytes BIGINT NOT NULL DEFAULT 0,
				stored_path TEXT NOT NULL,
				details JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_snapshots_run_id ON snapshots(run_id);
			CREATE INDEX idx_snapshots_step_target ON snapshots(run_id, step_id, target_path);
			CREATE INDEX idx_snapshots_created_at ON snapshots(created_at);

			CREATE TABLE rollbacks (
				id UUID PRIMARY KEY,
				snapshot_id UUID NOT NULL,
				run_id UUID,
				status VARCHAR(50) NOT NULL CHECK (status IN ('requested', 'applied', 'cancelled')),
				note TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_rollbacks_run_id ON rollbacks(run_id);
			CREATE INDEX idx_rollbacks_status ON rollbacks(status);
		`,
	}
}
