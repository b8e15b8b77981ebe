package exchangelog

const schemaSQL = `
CREATE TABLE IF NOT EXISTS exchanges (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  prompt TEXT NOT NULL,
  action TEXT NOT NULL,
  text TEXT,
  error TEXT,
  image_count INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  resolved_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_request_id ON exchanges(request_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_resolved_at ON exchanges(resolved_at);
`
