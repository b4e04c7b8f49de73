package scylla

// Requêtes CQL utilisées par le store
const (
	productColumns = `product_id, name, description, price, stock, image_url, created_at, updated_at`
	userColumns    = `user_id, username, email, password, money, is_staff, created_at`

	stmtSelectProducts = `SELECT ` + productColumns + ` FROM products`
	stmtSelectProduct  = `SELECT ` + productColumns + ` FROM products WHERE product_id = ?`
	stmtInsertProduct  = `INSERT INTO products (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmtUpdateProduct  = `UPDATE products SET name = ?, description = ?, price = ?, stock = ?, image_url = ?, updated_at = ? WHERE product_id = ?`

	stmtSelectUser         = `SELECT ` + userColumns + ` FROM users WHERE user_id = ?`
	stmtInsertUser         = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmtClaimUsername      = `INSERT INTO users_by_username (username, user_id) VALUES (?, ?) IF NOT EXISTS`
	stmtSelectUserIDByName = `SELECT user_id FROM users_by_username WHERE username = ?`
	stmtUpdateUserMoney    = `UPDATE users SET money = ? WHERE user_id = ?`

	stmtSelectPurchase        = `SELECT purchase_id, user_id, product_id, quantity, purchased_at FROM purchases WHERE purchase_id = ?`
	stmtInsertPurchase        = `INSERT INTO purchases (purchase_id, user_id, product_id, quantity, purchased_at) VALUES (?, ?, ?, ?, ?)`
	stmtInsertPurchaseByUser  = `INSERT INTO purchases_by_user (user_id, purchased_at, purchase_id, product_id, quantity) VALUES (?, ?, ?, ?, ?)`
	stmtSelectPurchasesByUser = `SELECT purchase_id, user_id, product_id, quantity, purchased_at FROM purchases_by_user WHERE user_id = ?`
	stmtDeletePurchase        = `DELETE FROM purchases WHERE purchase_id = ?`
	stmtDeletePurchaseByUser  = `DELETE FROM purchases_by_user WHERE user_id = ? AND purchased_at = ? AND purchase_id = ?`

	stmtSelectReturns          = `SELECT return_id, purchase_id, requested_by, created_at FROM product_returns`
	stmtSelectReturn           = `SELECT return_id, purchase_id, requested_by, created_at FROM product_returns WHERE return_id = ?`
	stmtSelectReturnByPurchase = `SELECT return_id FROM returns_by_purchase WHERE purchase_id = ?`
	stmtInsertReturn           = `INSERT INTO product_returns (return_id, purchase_id, requested_by, created_at) VALUES (?, ?, ?, ?)`
	stmtInsertReturnByPurchase = `INSERT INTO returns_by_purchase (purchase_id, return_id) VALUES (?, ?)`
	stmtDeleteReturn           = `DELETE FROM product_returns WHERE return_id = ?`
	stmtDeleteReturnByPurchase = `DELETE FROM returns_by_purchase WHERE purchase_id = ?`

	stmtInsertMovement = `INSERT INTO stock_movements (product_id, created_at, movement_id, type, quantity, prev_stock, new_stock, reason, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmtSelectMovementsByProduct = `SELECT movement_id, product_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at
		FROM stock_movements WHERE product_id = ? LIMIT ?`
	stmtSelectMovements = `SELECT movement_id, product_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at
		FROM stock_movements LIMIT ?`

	stmtInsertAudit = `INSERT INTO audit_logs (audit_id, user_id, username, action, resource, resource_id, ip_address, user_agent, success, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmtSelectAudit = `SELECT audit_id, user_id, username, action, resource, resource_id, ip_address, user_agent, success, error_msg, created_at
		FROM audit_logs LIMIT ?`
)
