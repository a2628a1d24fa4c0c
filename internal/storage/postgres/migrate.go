package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate installs the profile table, the new-user trigger, the row-level
// security policies, and the three administration functions. The
// super-administrator address is stored in portal_settings and read by the
// functions at call time, so changing it needs no function rewrite.
//
// The target database must provide the hosted backend's auth schema
// (auth.users, auth.email(), auth.uid(), auth.admin_invite_user_by_email).
func Migrate(ctx context.Context, pool *pgxpool.Pool, superAdminEmail string) error {
	superAdminEmail = strings.ToLower(strings.TrimSpace(superAdminEmail))
	if superAdminEmail == "" {
		return errors.New("super admin email is required")
	}

	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations (statement %d): %w", i+1, err)
		}
	}

	const seed = `INSERT INTO public.portal_settings (key, value) VALUES ('super_admin_email', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;`
	if _, err := pool.Exec(ctx, seed, superAdminEmail); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS public.portal_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`REVOKE ALL ON public.portal_settings FROM PUBLIC;`,
	`CREATE TABLE IF NOT EXISTS public.profiles (
		id UUID PRIMARY KEY REFERENCES auth.users(id) ON DELETE CASCADE,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin'))
	);`,
	`ALTER TABLE public.profiles ADD COLUMN IF NOT EXISTS full_name TEXT;`,
	`ALTER TABLE public.profiles ADD COLUMN IF NOT EXISTS department TEXT;`,
	`ALTER TABLE public.profiles ADD COLUMN IF NOT EXISTS title TEXT;`,

	`CREATE OR REPLACE FUNCTION public.portal_is_super_admin()
	RETURNS BOOLEAN
	LANGUAGE sql
	STABLE
	SECURITY DEFINER SET search_path = public
	AS $$
		SELECT EXISTS (
			SELECT 1 FROM public.portal_settings
			WHERE key = 'super_admin_email'
			  AND value = lower(COALESCE(auth.email(), ''))
		);
	$$;`,

	`CREATE OR REPLACE FUNCTION public.handle_new_user()
	RETURNS TRIGGER
	LANGUAGE plpgsql
	SECURITY DEFINER SET search_path = public
	AS $$
	BEGIN
		INSERT INTO public.profiles (id, full_name, role, department, title)
		VALUES (
			new.id,
			new.raw_user_meta_data->>'full_name',
			COALESCE(NULLIF(new.raw_user_meta_data->>'role', ''), 'user'),
			new.raw_user_meta_data->>'department',
			new.raw_user_meta_data->>'title'
		)
		ON CONFLICT (id) DO NOTHING;
		RETURN new;
	END;
	$$;`,
	`DROP TRIGGER IF EXISTS on_auth_user_created ON auth.users;`,
	`CREATE TRIGGER on_auth_user_created
		AFTER INSERT ON auth.users
		FOR EACH ROW EXECUTE PROCEDURE public.handle_new_user();`,

	`ALTER TABLE public.profiles ENABLE ROW LEVEL SECURITY;`,
	`DROP POLICY IF EXISTS "Users can view their own profile." ON public.profiles;`,
	`CREATE POLICY "Users can view their own profile."
		ON public.profiles FOR SELECT TO authenticated
		USING (auth.uid() = id);`,
	`DROP POLICY IF EXISTS "Super admins can view any profile." ON public.profiles;`,
	`CREATE POLICY "Super admins can view any profile."
		ON public.profiles FOR SELECT TO authenticated
		USING (public.portal_is_super_admin());`,
	`DROP POLICY IF EXISTS "Super admins can update any profile." ON public.profiles;`,
	`CREATE POLICY "Super admins can update any profile."
		ON public.profiles FOR UPDATE TO authenticated
		USING (public.portal_is_super_admin())
		WITH CHECK (public.portal_is_super_admin());`,
	`DROP POLICY IF EXISTS "Super admins can insert new profiles." ON public.profiles;`,
	`CREATE POLICY "Super admins can insert new profiles."
		ON public.profiles FOR INSERT TO authenticated
		WITH CHECK (public.portal_is_super_admin());`,

	`CREATE OR REPLACE FUNCTION public.get_users_with_roles()
	RETURNS TABLE(user_id UUID, email TEXT, role TEXT)
	LANGUAGE plpgsql
	SECURITY DEFINER SET search_path = public
	AS $$
	BEGIN
		IF NOT public.portal_is_super_admin() THEN
			RAISE EXCEPTION '403: Forbidden - Only the super admin can perform this action.'
				USING ERRCODE = '42501';
		END IF;

		RETURN QUERY
		SELECT u.id, u.email::text, COALESCE(p.role, 'user')::text
		FROM auth.users u
		LEFT JOIN public.profiles p ON u.id = p.id
		ORDER BY u.created_at, u.id;
	END;
	$$;`,

	`CREATE OR REPLACE FUNCTION public.admin_update_user_role(target_user_id UUID, new_role TEXT)
	RETURNS VOID
	LANGUAGE plpgsql
	SECURITY DEFINER SET search_path = public
	AS $$
	BEGIN
		IF NOT public.portal_is_super_admin() THEN
			RAISE EXCEPTION '403: Forbidden' USING ERRCODE = '42501';
		END IF;

		INSERT INTO public.profiles (id, role)
		VALUES (target_user_id, new_role)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role;
	END;
	$$;`,

	`CREATE OR REPLACE FUNCTION public.admin_invite_user(invite_email TEXT, user_metadata JSON)
	RETURNS VOID
	LANGUAGE plpgsql
	SECURITY DEFINER SET search_path = public
	AS $$
	BEGIN
		IF NOT public.portal_is_super_admin() THEN
			RAISE EXCEPTION '403: Forbidden' USING ERRCODE = '42501';
		END IF;

		PERFORM auth.admin_invite_user_by_email(invite_email, user_metadata);
	END;
	$$;`,
}
