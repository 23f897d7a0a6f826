// internal/db/migrations.go
package db

import "fmt"

const authSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                  TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
    email               TEXT UNIQUE NOT NULL,
    encrypted_password  TEXT NOT NULL,
    name                TEXT NOT NULL DEFAULT '',
    role                TEXT NOT NULL DEFAULT 'user'
                        CHECK (role IN ('admin', 'superAdmin', 'operator', 'user')),
    last_sign_in_at     TEXT,
    created_at          TEXT DEFAULT (datetime('now')),
    updated_at          TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS auth_sessions (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);

CREATE TABLE IF NOT EXISTS auth_refresh_tokens (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    token       TEXT UNIQUE NOT NULL,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    session_id  TEXT REFERENCES auth_sessions(id) ON DELETE CASCADE,
    revoked     INTEGER DEFAULT 0,
    created_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_auth_refresh_tokens_token ON auth_refresh_tokens(token);
`

const shopSchema = `
CREATE TABLE IF NOT EXISTS clients (
    id          TEXT PRIMARY KEY,
    user_id     TEXT REFERENCES users(id) ON DELETE SET NULL,
    name        TEXT NOT NULL,
    email       TEXT,
    phone       TEXT,
    address     TEXT,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_clients_user_id ON clients(user_id);

CREATE TABLE IF NOT EXISTS vehicles (
    id          TEXT PRIMARY KEY,
    client_id   TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    plate       TEXT UNIQUE NOT NULL,
    make        TEXT NOT NULL,
    model       TEXT NOT NULL,
    year        INTEGER,
    color       TEXT,
    vin         TEXT,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vehicles_client_id ON vehicles(client_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_plate ON vehicles(plate);

CREATE TABLE IF NOT EXISTS service_orders (
    id           TEXT PRIMARY KEY,
    vehicle_id   TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
    client_id    TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    status       TEXT NOT NULL DEFAULT 'received'
                 CHECK (status IN ('received', 'diagnosing', 'in_progress', 'waiting_parts', 'ready', 'delivered', 'cancelled')),
    description  TEXT NOT NULL DEFAULT '',
    diagnosis    TEXT,
    total        REAL NOT NULL DEFAULT 0,
    assigned_to  TEXT REFERENCES users(id) ON DELETE SET NULL,
    created_at   TEXT DEFAULT (datetime('now')),
    updated_at   TEXT DEFAULT (datetime('now')),
    delivered_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_service_orders_vehicle_id ON service_orders(vehicle_id);
CREATE INDEX IF NOT EXISTS idx_service_orders_client_id ON service_orders(client_id);
CREATE INDEX IF NOT EXISTS idx_service_orders_status ON service_orders(status);

CREATE TABLE IF NOT EXISTS order_lines (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT NOT NULL REFERENCES service_orders(id) ON DELETE CASCADE,
    item_id     TEXT,
    description TEXT NOT NULL,
    quantity    INTEGER NOT NULL DEFAULT 1,
    unit_price  REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);

CREATE TABLE IF NOT EXISTS inventory_items (
    id          TEXT PRIMARY KEY,
    sku         TEXT UNIQUE NOT NULL,
    name        TEXT NOT NULL,
    category    TEXT,
    quantity    INTEGER NOT NULL DEFAULT 0,
    min_stock   INTEGER NOT NULL DEFAULT 0,
    unit_price  REAL NOT NULL DEFAULT 0,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_inventory_items_sku ON inventory_items(sku);
`

const notificationSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id                TEXT PRIMARY KEY,
    user_id           TEXT REFERENCES users(id) ON DELETE CASCADE,
    type              TEXT NOT NULL DEFAULT 'info'
                      CHECK (type IN ('info', 'success', 'warning', 'error')),
    title             TEXT NOT NULL,
    message           TEXT NOT NULL,
    category          TEXT,
    priority          TEXT NOT NULL DEFAULT 'normal'
                      CHECK (priority IN ('low', 'normal', 'high')),
    requires_response INTEGER NOT NULL DEFAULT 0,
    response          TEXT,
    read              INTEGER NOT NULL DEFAULT 0,
    data              TEXT DEFAULT '{}' CHECK (json_valid(data)),
    created_at        TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(user_id, read);
`

const attachmentSchema = `
CREATE TABLE IF NOT EXISTS attachments (
    id           TEXT PRIMARY KEY,
    order_id     TEXT REFERENCES service_orders(id) ON DELETE CASCADE,
    vehicle_id   TEXT REFERENCES vehicles(id) ON DELETE CASCADE,
    file_name    TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
    size         INTEGER NOT NULL DEFAULT 0,
    storage_key  TEXT NOT NULL,
    created_at   TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_attachments_order_id ON attachments(order_id);
CREATE INDEX IF NOT EXISTS idx_attachments_vehicle_id ON attachments(vehicle_id);
`

// RunMigrations applies the schema. All statements are idempotent so this is
// safe to run on every start.
func (db *DB) RunMigrations() error {
	for _, schema := range []string{authSchema, shopSchema, notificationSchema, attachmentSchema} {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
