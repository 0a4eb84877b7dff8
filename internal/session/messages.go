package session

// User-facing messages (pt-BR).
const (
	msgLoginSuccess        = "Login realizado com sucesso!"
	msgLoginFailed         = "Falha no login"
	msgInvalidCredentials  = "Email ou senha incorretos"
	msgCheckCredentials    = "Por favor, verifique suas credenciais e tente novamente"
	msgProfileUnavailable  = "Não foi possível carregar seu perfil"
	msgLogoutFailed        = "Erro ao fazer logout"
	msgRegisterSuccess     = "Conta criada com sucesso!"
	msgRegisterSuccessDesc = "Você já pode fazer login com suas credenciais"
	msgRegisterFailed      = "Erro no cadastro"
	msgEmailTaken          = "Este email já está cadastrado"
	msgRegisterGeneric     = "Não foi possível criar sua conta. Tente novamente mais tarde"
	msgResetSent           = "Email de recuperação enviado!"
	msgResetSentDesc       = "Verifique sua caixa de entrada e siga as instruções"
	msgResetFailed         = "Erro na recuperação de senha"
	msgResetFailedDesc     = "Não foi possível enviar o email de recuperação. Verifique o endereço fornecido e tente novamente."
	msgProfileUpdated      = "Perfil atualizado!"
	msgProfileUpdatedDesc  = "Suas informações foram salvas com sucesso"
	msgUpdateFailed        = "Erro na atualização"
	msgUpdateFailedDesc    = "Não foi possível atualizar seu perfil. Por favor, tente novamente."
	msgUnauthenticated     = "Usuário não autenticado"
	msgRoleChangeDenied    = "Apenas administradores podem alterar perfis de acesso"
	msgSessionExpired      = "Sessão expirada"
	msgSessionExpiredDesc  = "Por favor, faça login novamente"
)

func welcomeMessage(fullName string) string {
	if fullName == "" {
		fullName = "de volta"
	}
	return "Bem-vindo(a) " + fullName + "!"
}
