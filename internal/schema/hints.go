package schema

// OlistHints documents the Olist columns whose meaning is not obvious from
// their names.
var OlistHints = map[string]string{
	"orders.order_purchase_timestamp":                            "UTC timestamp when order was placed",
	"orders.order_estimated_delivery_date":                       "Estimated delivery date",
	"orders.order_delivered_customer_date":                       "Actual delivery date to customer",
	"items.price":                                                "Item price in BRL",
	"items.freight_value":                                        "Shipping (freight) value in BRL",
	"payments.payment_value":                                     "Total paid value for the order",
	"reviews.review_score":                                       "Customer review score (1-5)",
	"products.product_category_name":                             "Original Portuguese category name",
	"product_category_translation.product_category_name_english": "Category name in English",
}
