package nl2sql

// Example pairs a question with the SQL a careful analyst would write for it.
type Example struct {
	Question string
	SQL      string
}

// Examples is the fixed few-shot corpus included in every prompt. The order
// is part of the prompt text.
var Examples = []Example{
	{
		Question: "Top 5 product categories by revenue",
		SQL: `WITH rev AS (
  SELECT i.product_id, (i.price + i.freight_value) AS line_rev
  FROM items i
)
SELECT p.product_category_name, SUM(r.line_rev) AS revenue
FROM rev r
JOIN products p ON p.product_id = r.product_id
GROUP BY 1
ORDER BY revenue DESC
LIMIT 5;`,
	},
	{
		Question: "Average delivery delay (days) by state",
		SQL: `SELECT c.customer_state,
       AVG(date_diff('day', o.order_estimated_delivery_date, o.order_delivered_customer_date)) AS avg_delay_days
FROM orders o
JOIN customers c ON c.customer_id = o.customer_id
WHERE o.order_delivered_customer_date IS NOT NULL
  AND o.order_estimated_delivery_date IS NOT NULL
GROUP BY 1
ORDER BY avg_delay_days DESC;`,
	},
	{
		Question: "How many orders per month in 2018?",
		SQL: `SELECT date_trunc('month', o.order_purchase_timestamp) AS month,
       COUNT(*) AS orders
FROM orders o
WHERE EXTRACT(YEAR FROM o.order_purchase_timestamp) = 2018
GROUP BY 1
ORDER BY 1;`,
	},
	{
		Question: "Share of payment types by count",
		SQL: `SELECT payment_type, COUNT(*) AS cnt
FROM payments
GROUP BY 1
ORDER BY cnt DESC;`,
	},
	{
		Question: "Average review score by product category (top 10)",
		SQL: `SELECT p.product_category_name, AVG(r.review_score) AS avg_score
FROM items i
JOIN products p ON p.product_id = i.product_id
JOIN reviews r ON r.order_id = i.order_id
GROUP BY 1
ORDER BY avg_score DESC
LIMIT 10;`,
	},
	{
		Question: "Top 10 cities by total freight value",
		SQL: `SELECT c.customer_city, SUM(i.freight_value) AS total_freight
FROM orders o
JOIN customers c ON c.customer_id = o.customer_id
JOIN items i ON i.order_id = o.order_id
GROUP BY 1
ORDER BY total_freight DESC
LIMIT 10;`,
	},
	{
		Question: "Overall late delivery rate",
		SQL: `SELECT
  100.0 * SUM(CASE WHEN o.order_delivered_customer_date > o.order_estimated_delivery_date THEN 1 ELSE 0 END)
  / NULLIF(COUNT(*),0) AS late_rate_pct
FROM orders o
WHERE o.order_delivered_customer_date IS NOT NULL
  AND o.order_estimated_delivery_date IS NOT NULL;`,
	},
	{
		Question: "Top categories by revenue with English names",
		SQL: `WITH line AS (
  SELECT i.product_id, (i.price + i.freight_value) AS line_rev
  FROM items i
)
SELECT t.product_category_name_english AS category_en,
       SUM(l.line_rev) AS revenue
FROM line l
JOIN products p ON p.product_id = l.product_id
LEFT JOIN product_category_translation t
  ON t.product_category_name = p.product_category_name
GROUP BY 1
ORDER BY revenue DESC
LIMIT 10;`,
	},
}
