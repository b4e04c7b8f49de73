package utils

import (
	"bytes"
	"html/template"
)

// ReturnNotice contient les données affichées dans les emails de décision
type ReturnNotice struct {
	Username    string
	ProductName string
	Quantity    int
	Amount      int64
	Balance     int64
}

var emailLayout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f5f5f5;">
    <table role="presentation" style="width: 100%; border-collapse: collapse;">
        <tr>
            <td style="padding: 40px 20px;">
                <table role="presentation" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 12px;">
                    <tr>
                        <td style="background: {{.Color}}; padding: 30px; text-align: center; border-radius: 12px 12px 0 0;">
                            <h1 style="margin: 0; color: #ffffff; font-size: 26px;">{{.Title}}</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 30px; color: #333333; font-size: 16px; line-height: 1.6;">
                            <p>Bonjour {{.Notice.Username}},</p>
                            {{if .Approved}}
                            <p>Votre retour de <strong>{{.Notice.Quantity}} × {{.Notice.ProductName}}</strong> a été accepté.</p>
                            <p style="font-size: 32px; font-weight: 700; color: #047857; text-align: center;">+{{.Notice.Amount}} unités</p>
                            <p>Nouveau solde : <strong>{{.Notice.Balance}} unités</strong>.</p>
                            {{else}}
                            <p>Votre demande de retour pour <strong>{{.Notice.Quantity}} × {{.Notice.ProductName}}</strong> a été refusée.</p>
                            <p>Votre achat reste valable et votre solde n'a pas changé.</p>
                            {{end}}
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`))

// RenderReturnEmail génère le sujet et le HTML d'une décision de retour
func RenderReturnEmail(notice ReturnNotice, approved bool) (subject, html string, err error) {
	data := struct {
		Title    string
		Color    string
		Approved bool
		Notice   ReturnNotice
	}{
		Title:    "❌ Retour refusé",
		Color:    "#dc2626",
		Approved: approved,
		Notice:   notice,
	}
	if approved {
		data.Title = "✅ Retour accepté"
		data.Color = "#059669"
	}

	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return data.Title, buf.String(), nil
}

// SendReturnDecisionEmail prévient l'acheteur de la décision du staff
func SendReturnDecisionEmail(to string, notice ReturnNotice, approved bool) error {
	subject, html, err := RenderReturnEmail(notice, approved)
	if err != nil {
		Log.Errorf("❌ Erreur exécution template: %v", err)
		return err
	}
	if err := SendEmail(to, subject, html); err != nil {
		Log.Errorf("❌ Erreur envoi email: %v", err)
		return err
	}
	return nil
}
