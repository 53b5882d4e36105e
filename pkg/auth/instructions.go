package auth

import (
	"fmt"
	"strings"
)

// ShowAPIKeyGuide displays step-by-step instructions for creating an API key
func ShowAPIKeyGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🔑 CIVITAI API KEY GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs a CivitAI API key to access the API and download media.")
	fmt.Println("Follow these steps to create one:")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Log in to CivitAI")
	fmt.Println("   - Go to https://civitai.com")
	fmt.Println("   - Sign in with your account")
	fmt.Println()

	fmt.Println("⚙️  STEP 2: Open your account settings")
	fmt.Println("   - Click your avatar in the top-right corner")
	fmt.Println("   - Choose 'Account settings'")
	fmt.Println()

	fmt.Println("🔧 STEP 3: Create an API key")
	fmt.Println("   - Scroll to the 'API Keys' section")
	fmt.Println("   - Click 'Add API key'")
	fmt.Println("   - Give it a name (e.g. 'civitdl') and save")
	fmt.Println("   - Copy the generated key immediately, it is shown only once")
	fmt.Println()

	fmt.Println("💾 STEP 4: Store the key")
	fmt.Println("   - Run: civitdl auth login")
	fmt.Println("   - Or set the CIVITDL_API_KEY environment variable")
	fmt.Println()

	fmt.Println("💡 TIPS:")
	fmt.Println("   • Keys can be revoked and recreated at any time from the same page")
	fmt.Println("   • Restricted collections require the key's account to have access")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • The API key acts on behalf of your CivitAI account")
	fmt.Println("   • NEVER share it or commit it to a repository")
	fmt.Println("   • Store it securely (this tool encrypts it)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickKeyGuide shows a condensed version for experienced users
func ShowQuickKeyGuide() {
	fmt.Println("\n🔑 Quick Guide: civitai.com → Account settings → API Keys → Add API key")
	fmt.Println("   Then: civitdl auth login (or export CIVITDL_API_KEY=...)")
	fmt.Println("   Type 'help' for detailed instructions")
}
