package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func Load() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
}

// Get lit une variable d'environnement avec valeur par défaut.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FrontendOrigin est l'origine autorisée pour le CORS et pour
// l'upgrade websocket — le check d'origine de la messagerie
// popup/opener.
func FrontendOrigin() string {
	return Get("FRONTEND_ORIGIN", "http://localhost:5173")
}
