package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Volume    string
	Quantity  int
	Price     decimal.Decimal
}

func (i OrderItem) label() string {
	name := i.Name
	if name == "" {
		name = i.ProductID
	}
	if i.Volume != "" {
		name += " (" + i.Volume + ")"
	}
	return html.EscapeString(name)
}

type OrderSummary struct {
	Reference    string
	CustomerName string
	Items        []OrderItem
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Shipping     decimal.Decimal
	Total        decimal.Decimal
}

// CartReminder is the content of one abandoned cart mail. Stage starts at 1.
type CartReminder struct {
	Stage   int
	Items   []OrderItem
	Total   decimal.Decimal
	CartURL string
}

const layout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; color: #2b2b2b; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f1a17; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: #e8d8b0; margin: 0; font-size: 24px;">%s</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		%s

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This message was sent automatically. Reply to this address if you need help with your order.
		</p>
	</div>
</body>
</html>`

func itemRows(items []OrderItem) string {
	var rows strings.Builder
	for _, item := range items {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			item.label(),
			item.Quantity,
			formatMoney(item.Price),
			formatMoney(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		))
	}
	return fmt.Sprintf(`<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f6f2;">
					<th style="padding: 12px; text-align: left;">Fragrance</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Line total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>`, rows.String())
}

func totalRow(label string, amount decimal.Decimal, strong bool) string {
	size := "14px"
	if strong {
		size = "20px"
	}
	return fmt.Sprintf(`<div style="text-align: right; font-size: %s;">%s: <strong>%s</strong></div>`, size, label, formatMoney(amount))
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(o OrderSummary) string {
	greeting := "Thank you for your order."
	if o.CustomerName != "" {
		greeting = fmt.Sprintf("Dear %s, thank you for your order.", html.EscapeString(o.CustomerName))
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf(`<p style="margin-top: 0;">%s</p>`, greeting))
	content.WriteString(fmt.Sprintf(`<div style="background: #f8f6f2; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order reference</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>`, html.EscapeString(o.Reference)))
	content.WriteString(itemRows(o.Items))
	content.WriteString(totalRow("Subtotal", o.Subtotal, false))
	if o.Discount.IsPositive() {
		content.WriteString(totalRow("Discount", o.Discount.Neg(), false))
	}
	content.WriteString(totalRow("Shipping", o.Shipping, false))
	content.WriteString(totalRow("Total", o.Total, true))

	return fmt.Sprintf(layout, "Thank you for your order", content.String())
}

var reminderCopy = []struct {
	subject string
	heading string
	text    string
}{
	{"You left something in your cart", "Still thinking it over?", "Your selection is waiting for you. Complete your order whenever you are ready."},
	{"Your fragrances are waiting", "Your cart misses you", "The scents you picked are still in your cart, but stock is limited."},
	{"Last reminder about your cart", "A last look before it goes", "This is our last reminder. Your cart will not be held much longer."},
}

func reminder(stage int) (subject, heading, text string) {
	i := stage - 1
	if i < 0 {
		i = 0
	}
	if i >= len(reminderCopy) {
		i = len(reminderCopy) - 1
	}
	c := reminderCopy[i]
	return c.subject, c.heading, c.text
}

// ReminderSubject returns the subject line of a reminder stage. Stages past
// the last one reuse its copy.
func ReminderSubject(stage int) string {
	subject, _, _ := reminder(stage)
	return subject
}

// BuildCartReminderBody builds the HTML body of an abandoned cart reminder
func BuildCartReminderBody(r CartReminder) string {
	_, heading, text := reminder(r.Stage)

	var content strings.Builder
	content.WriteString(fmt.Sprintf(`<p style="margin-top: 0;">%s</p>`, text))
	content.WriteString(itemRows(r.Items))
	content.WriteString(totalRow("Cart total", r.Total, true))
	if r.CartURL != "" {
		content.WriteString(fmt.Sprintf(`<p style="text-align: center; margin-top: 30px;">
			<a href="%s" style="background: #1f1a17; color: #e8d8b0; padding: 12px 24px; border-radius: 5px; text-decoration: none;">Return to your cart</a>
		</p>`, html.EscapeString(r.CartURL)))
	}
	return fmt.Sprintf(layout, heading, content.String())
}

// formatMoney renders an amount with two decimals and comma separators, e.g. €1,234.50
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	str := d.StringFixed(2)
	intPart, frac := str[:len(str)-3], str[len(str)-3:]

	var result strings.Builder
	remainder := len(intPart) % 3
	if remainder > 0 {
		result.WriteString(intPart[:remainder])
	}
	for i := remainder; i < len(intPart); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(intPart[i : i+3])
	}

	return sign + "€" + result.String() + frac
}
